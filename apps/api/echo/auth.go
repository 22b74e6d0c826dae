package echoapi

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/user"
)

const (
	contextClaimsKey = "userClaims"
	contextUserKey   = "user"
	tokenAudience    = "campus"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	OrigIssuedAt int64     `json:"oriat,omitempty"`
	Name         string    `json:"name,omitempty"`
	Email        string    `json:"email,omitempty"`
	Role         user.Role `json:"role,omitempty"`
}

// TokenIssuer signs and verifies the HS256 tokens handed out at login.
type TokenIssuer struct {
	appName       string
	secret        []byte
	expiry        time.Duration
	refreshExpiry time.Duration
	clock         core.Clock
}

func NewTokenIssuer(conf *core.Config, clock core.Clock) *TokenIssuer {
	return &TokenIssuer{
		appName:       conf.AppName,
		secret:        []byte(conf.SecretKey),
		expiry:        conf.Server.JWTExpirationDelta,
		refreshExpiry: conf.Server.JWTRefreshExpirationDelta,
		clock:         clock,
	}
}

func (ti *TokenIssuer) Claims(usr user.User, origIat ...int64) *Claims {
	now := ti.clock.Now()

	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.appName,
			Subject:   usr.ID,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OrigIssuedAt: oriat,
		Name:         usr.Name,
		Email:        usr.Email,
		Role:         usr.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func (ti *TokenIssuer) GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(ti.secret)
	return ss, errors.Wrap(err, "signing token")
}

// Token is a shortcut for GenerateToken(Claims(usr)).
func (ti *TokenIssuer) Token(usr user.User) (string, error) {
	return ti.GenerateToken(ti.Claims(usr))
}

func (ti *TokenIssuer) parse(raw string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(
		raw, claims,
		func(*jwt.Token) (interface{}, error) { return ti.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ti.appName),
		jwt.WithAudience(tokenAudience),
		jwt.WithTimeFunc(ti.clock.Now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// jwtMiddleware authenticates the bearer token and loads the active user it was issued to.
func jwtMiddleware(ti *TokenIssuer, users *user.Service) echo.MiddlewareFunc {
	authenticate := echojwt.WithConfig(echojwt.Config{
		ContextKey: contextClaimsKey,
		// HS256 only; issuer, audience and expiry are checked against the app clock
		ParseTokenFunc: func(_ echo.Context, auth string) (interface{}, error) {
			claims, err := ti.parse(auth)
			if err != nil {
				return nil, err
			}
			return claims, nil
		},
		ErrorHandler: func(_ echo.Context, err error) error {
			var parseErr *echojwt.TokenParsingError
			if errors.As(err, &parseErr) {
				return errInvalidToken.WithInternal(err)
			}
			return errMissingToken
		},
	})
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return authenticate(loadActiveUser(users, next))
	}
}

// loadActiveUser puts the user the token was issued to into the context.
// It runs after echojwt, whose SuccessHandler cannot fail a request.
func loadActiveUser(users *user.Service, next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		usr, err := users.GetByID(ctx.Request().Context(), claims.Subject)
		if err != nil {
			if core.IsNotFound(err) {
				return errInvalidToken
			}
			return errors.Wrap(err, "finding user by ID")
		}
		if !usr.IsActive {
			return user.ErrAccountDeactivated
		}
		ctx.Set(contextUserKey, usr)
		return next(ctx)
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*Claims); ok && claims != nil {
		return *claims, nil
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}

func refreshToken(ctx echo.Context, ti *TokenIssuer) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return "", err
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(ti.refreshExpiry)
	if ti.clock.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := ti.GenerateToken(ti.Claims(usr, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}
