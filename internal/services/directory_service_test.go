package services

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busmate/internal/apperrors"
	"busmate/internal/models"
)

func validRegistration() RegisterInput {
	return RegisterInput{
		Username:     "asha",
		Password:     "s3cret-pass",
		FirstName:    "Asha",
		LastName:     "Nair",
		Email:        "asha@example.edu",
		MobileNumber: "9876543210",
		UserType:     models.UserTypeFaculty,
		Department:   "MCA",
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.directory.Register(ctx, validRegistration())
	require.NoError(t, err)
	require.NotNil(t, user.Profile)
	assert.Equal(t, models.UserTypeFaculty, user.Profile.UserType)
	assert.False(t, user.Profile.IsAdmin)
	assert.NotEqual(t, "s3cret-pass", user.Password)

	got, err := f.directory.Authenticate(ctx, "asha", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = f.directory.Authenticate(ctx, "asha", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = f.directory.Authenticate(ctx, "nobody", "s3cret-pass")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = f.directory.Register(ctx, validRegistration())
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		mutate func(*RegisterInput)
		field  string
	}{
		{"missing username", func(in *RegisterInput) { in.Username = " " }, "username"},
		{"short password", func(in *RegisterInput) { in.Password = "abc" }, "password"},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }, "email"},
		{"long mobile", func(in *RegisterInput) { in.MobileNumber = "1234567890123456" }, "mobile_number"},
		{"unknown department", func(in *RegisterInput) { in.Department = "Law" }, "department"},
		{"bad user type", func(in *RegisterInput) { in.UserType = "ALUMNI" }, "user_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validRegistration()
			tt.mutate(&in)
			_, err := f.directory.Register(context.Background(), in)
			require.ErrorIs(t, err, apperrors.ErrValidation)
			assert.Equal(t, tt.field, apperrors.FieldOf(err))
		})
	}
}

func TestRegisterDefaultsToStudent(t *testing.T) {
	f := newFixture(t)
	in := validRegistration()
	in.UserType = ""
	in.Department = ""

	user, err := f.directory.Register(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, models.UserTypeStudent, user.Profile.UserType)
}

func TestGetOrCreateProfileIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "legacy")

	normal, err := f.directory.IsNormalUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, normal, "a user without a profile is a normal user")

	var wg sync.WaitGroup
	ids := make([]uint, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := f.directory.GetOrCreateProfile(ctx, u.ID)
			if assert.NoError(t, err) {
				ids[i] = p.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	p, err := f.directory.GetOrCreateProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserTypeStudent, p.UserType)
	assert.False(t, p.IsAdmin)

	_, err = f.directory.GetOrCreateProfile(ctx, 9999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestIsAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "boss")
	p, err := f.directory.GetOrCreateProfile(ctx, u.ID)
	require.NoError(t, err)
	p.IsAdmin = true
	require.NoError(t, f.repo.Profile().Update(ctx, p))

	admin, err := f.directory.IsAdmin(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, admin)
	normal, err := f.directory.IsNormalUser(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, normal)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "asha")

	email := "new@example.edu"
	dept := "BBA"
	stop := " Gate "
	user, err := f.directory.UpdateProfile(ctx, u.ID, ProfilePatch{Email: &email, Department: &dept, PreferredBoardingLocation: &stop})
	require.NoError(t, err)
	assert.Equal(t, email, user.Email)
	require.NotNil(t, user.Profile)
	assert.Equal(t, "BBA", user.Profile.Department)
	assert.Equal(t, "Gate", user.Profile.PreferredBoardingLocation)

	bad := "Law"
	_, err = f.directory.UpdateProfile(ctx, u.ID, ProfilePatch{Department: &bad})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func TestSavePhoto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "asha")

	profile, err := f.directory.SavePhoto(ctx, u.ID, "../../me.png", pngBytes(t))
	require.NoError(t, err)
	assert.Equal(t, filepath.ToSlash(filepath.Join("user_"+itoa(u.ID), "profile_photos", "me.png")), profile.Photo)

	stored, err := os.ReadFile(filepath.Join(f.directory.uploadDir, filepath.FromSlash(profile.Photo)))
	require.NoError(t, err)
	assert.Equal(t, pngBytes(t), stored)

	_, err = f.directory.SavePhoto(ctx, u.ID, "notes.txt", []byte("plain text, not an image"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	big := append(pngBytes(t), make([]byte, MaxPhotoSize)...)
	_, err = f.directory.SavePhoto(ctx, u.ID, "big.png", big)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
