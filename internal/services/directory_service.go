package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"busmate/internal/apperrors"
	"busmate/internal/models"
	"busmate/internal/repositories"
)

// MaxPhotoSize is the upload limit for profile photos.
const MaxPhotoSize = 5 << 20

type RegisterInput struct {
	Username     string          `json:"username" validate:"required,max=150"`
	Password     string          `json:"password" validate:"required,min=8,max=72"`
	FirstName    string          `json:"first_name" validate:"max=150"`
	LastName     string          `json:"last_name" validate:"max=150"`
	Email        string          `json:"email" validate:"omitempty,email"`
	MobileNumber string          `json:"mobile_number" validate:"max=15"`
	UserType     models.UserType `json:"user_type" validate:"user_type"`
	Department   string          `json:"department" validate:"department"`
}

// ProfilePatch updates only the fields that are set.
type ProfilePatch struct {
	Email                     *string `json:"email" validate:"omitempty,email"`
	FirstName                 *string `json:"first_name" validate:"omitempty,max=150"`
	LastName                  *string `json:"last_name" validate:"omitempty,max=150"`
	MobileNumber              *string `json:"mobile_number" validate:"omitempty,max=15"`
	Department                *string `json:"department" validate:"omitempty,department"`
	PreferredBoardingLocation *string `json:"preferred_boarding_location" validate:"omitempty,max=200"`
}

type DirectoryService struct {
	repo       repositories.Repository
	validate   *validator.Validate
	uploadDir  string
	bcryptCost int
}

func NewDirectoryService(repo repositories.Repository, validate *validator.Validate, uploadDir string) *DirectoryService {
	return &DirectoryService{repo: repo, validate: validate, uploadDir: uploadDir, bcryptCost: bcrypt.DefaultCost}
}

// Register creates the user and its profile in one transaction.
func (s *DirectoryService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if in.UserType == "" {
		in.UserType = models.UserTypeStudent
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:  in.Username,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Password:  string(hash),
	}
	profile := &models.Profile{
		UserType:     in.UserType,
		Department:   in.Department,
		MobileNumber: in.MobileNumber,
	}
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if _, err := tx.User().GetByUsername(ctx, user.Username); err == nil {
			return apperrors.ErrDuplicateUsername
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		if err := tx.User().Create(ctx, user); err != nil {
			return err
		}
		profile.UserID = user.ID
		return tx.Profile().Create(ctx, profile)
	})
	if err != nil {
		return nil, err
	}

	user.Profile = profile
	logrus.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("user registered")
	return user, nil
}

func (s *DirectoryService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.repo.User().GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	return user, nil
}

func (s *DirectoryService) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	return s.repo.User().GetByID(ctx, userID)
}

// GetOrCreateProfile returns the user's profile, creating the default one if
// missing. A concurrent creator wins and its profile is re-read.
func (s *DirectoryService) GetOrCreateProfile(ctx context.Context, userID uint) (*models.Profile, error) {
	profile, err := s.repo.Profile().GetByUserID(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if _, err := s.repo.User().GetByID(ctx, userID); err != nil {
		return nil, err
	}

	profile = &models.Profile{UserID: userID, IsAdmin: false, UserType: models.UserTypeStudent}
	if err := s.repo.Profile().Create(ctx, profile); err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			return s.repo.Profile().GetByUserID(ctx, userID)
		}
		return nil, err
	}
	logrus.WithField("user_id", userID).Debug("default profile created")
	return profile, nil
}

// IsAdmin reports the profile's admin flag. A user without a profile is not an admin.
func (s *DirectoryService) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	profile, err := s.repo.Profile().GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return profile.IsAdmin, nil
}

func (s *DirectoryService) IsNormalUser(ctx context.Context, userID uint) (bool, error) {
	admin, err := s.IsAdmin(ctx, userID)
	return !admin, err
}

// UpdateProfile edits user fields and profile fields together.
func (s *DirectoryService) UpdateProfile(ctx context.Context, userID uint, patch ProfilePatch) (*models.User, error) {
	if err := s.validate.Struct(patch); err != nil {
		return nil, validationError(err)
	}
	if _, err := s.GetOrCreateProfile(ctx, userID); err != nil {
		return nil, err
	}

	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		user, err := tx.User().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		profile, err := tx.Profile().GetByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if patch.Email != nil {
			user.Email = strings.TrimSpace(*patch.Email)
		}
		if patch.FirstName != nil {
			user.FirstName = *patch.FirstName
		}
		if patch.LastName != nil {
			user.LastName = *patch.LastName
		}
		if patch.MobileNumber != nil {
			profile.MobileNumber = *patch.MobileNumber
		}
		if patch.Department != nil {
			profile.Department = *patch.Department
		}
		if patch.PreferredBoardingLocation != nil {
			profile.PreferredBoardingLocation = strings.TrimSpace(*patch.PreferredBoardingLocation)
		}
		user.Profile = nil
		if err := tx.User().Update(ctx, user); err != nil {
			return err
		}
		return tx.Profile().Update(ctx, profile)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.User().GetByID(ctx, userID)
}

// SavePhoto stores a JPEG or PNG of at most MaxPhotoSize bytes and records
// its path, relative to the upload root, on the profile.
func (s *DirectoryService) SavePhoto(ctx context.Context, userID uint, filename string, data []byte) (*models.Profile, error) {
	if len(data) == 0 {
		return nil, apperrors.Validation("photo", "photo is required")
	}
	if len(data) > MaxPhotoSize {
		return nil, apperrors.Validation("photo", "image file too large (max 5MB)")
	}
	mime := mimetype.Detect(data)
	if !mime.Is("image/jpeg") && !mime.Is("image/png") {
		return nil, apperrors.Validation("photo", "only JPG and PNG images are allowed")
	}

	profile, err := s.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	rel := path.Join(fmt.Sprintf("user_%d", userID), "profile_photos", photoName(filename, mime.Extension()))
	dest := filepath.Join(s.uploadDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("create photo dir: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return nil, fmt.Errorf("write photo: %w", err)
	}

	profile.Photo = rel
	if err := s.repo.Profile().Update(ctx, profile); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "photo": rel}).Info("profile photo saved")
	return profile, nil
}

// photoName keeps only the base name of an uploaded file.
func photoName(filename, ext string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" || strings.HasPrefix(base, "..") {
		return "photo" + ext
	}
	return base
}

// SetPreferredBoardingLocation remembers the last stop the user applied from.
func (s *DirectoryService) SetPreferredBoardingLocation(ctx context.Context, userID uint, name string) error {
	profile, err := s.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return err
	}
	if profile.PreferredBoardingLocation == name {
		return nil
	}
	profile.PreferredBoardingLocation = name
	return s.repo.Profile().Update(ctx, profile)
}
