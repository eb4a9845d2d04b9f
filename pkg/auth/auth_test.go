package auth

import (
	"fmt"
	"testing"
	"time"

	"github.com/arnavshah/site-capacity-api/pkg/database"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	assert.True(t, CheckPasswordHash("s3cret", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}

func TestToken_RoundTrip(t *testing.T) {
	m := NewManager("jwt-secret", "master-secret")

	token, err := m.CreateToken("alice", RoleApprover)
	require.NoError(t, err)

	claims, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, RoleApprover, claims.Role)

	actor := claims.Actor()
	assert.Equal(t, "alice", actor.ID)
	assert.True(t, actor.CanUnlock)
}

func TestToken_PlannerCannotUnlock(t *testing.T) {
	claims := &Claims{Username: "bob", Role: RolePlanner}
	assert.False(t, claims.Actor().CanUnlock)
}

func TestToken_Rejected(t *testing.T) {
	m := NewManager("jwt-secret", "master-secret")
	token, err := m.CreateToken("alice", RolePlanner)
	require.NoError(t, err)

	_, err = NewManager("other-secret", "master-secret").VerifyToken(token)
	assert.Error(t, err, "wrong secret")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	signed, err := expired.SignedString([]byte("jwt-secret"))
	require.NoError(t, err)
	_, err = m.VerifyToken(signed)
	assert.Error(t, err, "expired")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Username: "mallory"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.VerifyToken(unsigned)
	assert.Error(t, err, "alg none")
}

func TestHMACKey(t *testing.T) {
	m := NewManager("jwt-secret", "master-secret")

	key := m.GenerateHMACKey("payroll.sync")
	name, err := m.VerifyHMACKey(key)
	require.NoError(t, err)
	assert.Equal(t, "payroll.sync", name, "names may contain dots")

	_, err = NewManager("jwt-secret", "other").VerifyHMACKey(key)
	assert.Error(t, err)

	for _, bad := range []string{"", "nodot", ".sig", "name.", key + "00"} {
		_, err := m.VerifyHMACKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestEnsureAdminExists(t *testing.T) {
	db, err := database.InitDB(database.Options{DataPath: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())})
	require.NoError(t, err)

	require.NoError(t, EnsureAdminExists(db, "admin", "pw"))
	require.NoError(t, EnsureAdminExists(db, "other", "pw"), "second call is a no-op")

	var users []database.MasterUser
	require.NoError(t, db.Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0].Username)
	assert.Equal(t, RoleApprover, users[0].Role)
	assert.True(t, CheckPasswordHash("pw", users[0].PasswordHash))
}
