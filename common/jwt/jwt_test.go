package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ticketbooth-services/common/errors"
)

func bearer(token string) map[string]string {
	return map[string]string{"authorization": "Bearer " + token}
}

func TestGenerateAndValidate(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	token, err := m.GenerateToken("vol-7", "Sam Door", "volunteer")
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "vol-7", claims.StaffID)
	assert.Equal(t, RoleVolunteer, claims.Role)
	assert.Equal(t, "Sam Door", claims.Actor())
}

func TestGenerateRejectsUnknownRole(t *testing.T) {
	_, err := NewManager("s", time.Hour).GenerateToken("x", "X", "ORGANIZER")
	assert.Error(t, err)
}

func TestAuthorize(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	admin, err := m.GenerateToken("adm-1", "Alex Admin", RoleAdmin)
	require.NoError(t, err)
	volunteer, err := m.GenerateToken("vol-1", "", RoleVolunteer)
	require.NoError(t, err)
	foreign, err := NewManager("other-secret", time.Hour).GenerateToken("adm-1", "", RoleAdmin)
	require.NoError(t, err)

	tests := []struct {
		name    string
		headers map[string]string
		roles   []string
		code    apperrors.ErrorCode
	}{
		{"admin on admin route", bearer(admin), []string{RoleAdmin}, ""},
		{"volunteer on staff route", bearer(volunteer), StaffRoles, ""},
		{"volunteer on admin route", bearer(volunteer), []string{RoleAdmin}, apperrors.ErrCodeAccessDenied},
		{"missing header", map[string]string{}, StaffRoles, apperrors.ErrCodeUnauthorized},
		{"not bearer", map[string]string{"Authorization": "Basic abc"}, StaffRoles, apperrors.ErrCodeUnauthorized},
		{"wrong secret", bearer(foreign), StaffRoles, apperrors.ErrCodeInvalidToken},
		{"garbage", bearer("abc.def.ghi"), StaffRoles, apperrors.ErrCodeInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := m.Authorize(tt.headers, tt.roles...)
			if tt.code == "" {
				require.NoError(t, err)
				assert.NotNil(t, claims)
				return
			}
			assert.True(t, apperrors.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestAuthorizeExpiredToken(t *testing.T) {
	m := NewManager("test-secret", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := m.GenerateToken("vol-1", "", RoleVolunteer)
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Authorize(bearer(token), StaffRoles...)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTokenExpired), "got %v", err)
}

func TestActorFallsBackToStaffID(t *testing.T) {
	c := &Claims{StaffID: "vol-9"}
	assert.Equal(t, "vol-9", c.Actor())
}
