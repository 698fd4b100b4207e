package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/angelmondragon/porter-backend/internal/dispatch"
	"github.com/angelmondragon/porter-backend/internal/email"
	"github.com/angelmondragon/porter-backend/internal/users"
	"github.com/angelmondragon/porter-backend/pkg/config"
	"github.com/angelmondragon/porter-backend/pkg/db"
	"github.com/angelmondragon/porter-backend/pkg/db/models"
	"github.com/angelmondragon/porter-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/porter-backend/pkg/errors"
	"github.com/angelmondragon/porter-backend/pkg/logger"
	"github.com/angelmondragon/porter-backend/pkg/security"
)

var phonePattern = regexp.MustCompile(`^\d{10}$`)

// RegisterService handles account creation.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
}

type registerUserRepository interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	UserRepo         registerUserRepository
	PasswordConfig   config.PasswordConfig
	AllowAdminSignup bool
	Dispatcher       dispatch.Runner
	Emailer          email.Emailer
	Logger           *logger.Logger
}

type registerService struct {
	users       registerUserRepository
	passwordCfg config.PasswordConfig
	allowAdmin  bool
	dispatcher  dispatch.Runner
	emailer     email.Emailer
	logg        *logger.Logger
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.UserRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repository required")
	}
	if params.Dispatcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "dispatcher required")
	}
	if params.Emailer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "emailer required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &registerService{
		users:       params.UserRepo,
		passwordCfg: params.PasswordConfig,
		allowAdmin:  params.AllowAdminSignup,
		dispatcher:  params.Dispatcher,
		emailer:     params.Emailer,
		logg:        logg,
	}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	role, err := s.resolveRole(req.Role)
	if err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	if firstName == "" || lastName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "first and last name are required")
	}

	var phone *string
	if req.Phone != nil {
		trimmed := strings.TrimSpace(*req.Phone)
		if !phonePattern.MatchString(trimmed) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]string{"phone": "phone number must be 10 digits"})
		}
		phone = &trimmed
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]string{"password": err.Error()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user, err := s.users.Create(ctx, users.CreateUserDTO{
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		Phone:        phone,
		Role:         role,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}

	to := emailRecipient(user)
	if err := s.dispatcher.Go(ctx, dispatch.Task{
		Name:   "welcome_email",
		Fields: map[string]any{"user_id": user.ID.String()},
		Run: func(ctx context.Context) error {
			return s.emailer.SendWelcome(ctx, to)
		},
	}); err != nil {
		s.logg.Error(ctx, "schedule welcome email",
			pkgerrors.Wrap(pkgerrors.CodeSideEffect, err, "dispatch welcome_email"))
	}

	return users.FromModel(user), nil
}

func (s *registerService) resolveRole(raw string) (enums.Role, error) {
	if strings.TrimSpace(raw) == "" {
		return enums.RoleUser, nil
	}
	role, err := enums.ParseRole(raw)
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"role": "must be one of: user, driver"})
	}
	if role == enums.RoleAdmin && !s.allowAdmin {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "admin signup disabled")
	}
	return role, nil
}

func emailRecipient(user *models.User) email.Recipient {
	return email.Recipient{
		Email:    user.Email,
		FullName: strings.TrimSpace(user.FirstName + " " + user.LastName),
	}
}
