package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	gotrue "github.com/supabase-community/auth-go"
	"github.com/supabase-community/auth-go/types"
	"github.com/the-bazaar/bazaar-backend/internal/config"
)

// GoTrueClient adapts the Supabase auth client to Provider.
type GoTrueClient struct {
	base           gotrue.Client
	serviceRoleKey string
	httpClient     *http.Client
}

func NewGoTrueClient(cfg config.IdentityConfig, httpClient *http.Client) *GoTrueClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.IdentityRequestTimeout}
	}
	base := gotrue.New("", cfg.AnonKey).
		WithCustomAuthURL(strings.TrimRight(cfg.URL, "/") + "/auth/v1")
	return &GoTrueClient{
		base:           base,
		serviceRoleKey: cfg.ServiceRoleKey,
		httpClient:     httpClient,
	}
}

// exchange binds one call to ctx and keeps the provider's error response,
// which the auth client folds into an opaque error string.
type exchange struct {
	ctx    context.Context
	next   http.RoundTripper
	status int
	body   []byte
}

func (e *exchange) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := e.next.RoundTrip(req.WithContext(e.ctx))
	if err != nil {
		return nil, err
	}
	e.status = resp.StatusCode
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		e.body = raw
		resp.Body = io.NopCloser(bytes.NewReader(raw))
	}
	return resp, nil
}

func (c *GoTrueClient) session(ctx context.Context, bearer string) (gotrue.Client, *exchange) {
	next := c.httpClient.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	ex := &exchange{ctx: ctx, next: next}
	client := c.base.WithClient(http.Client{Timeout: c.httpClient.Timeout, Transport: ex})
	if bearer != "" {
		client = client.WithToken(bearer)
	}
	return client, ex
}

// classify turns a failed call into the package's error taxonomy.
// credentialCall marks endpoints where GoTrue answers bad tokens with 400/404.
func classify(err error, ex *exchange, credentialCall bool) error {
	if err == nil {
		return nil
	}
	if ex.status == 0 || ex.status < 300 {
		// transport failure, or a 2xx body the client could not decode
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	apiErr := decodeAPIError(ex.status, ex.body)
	switch {
	case ex.status >= 500:
		return fmt.Errorf("%w: %v", ErrUnavailable, apiErr)
	case ex.status == http.StatusUnauthorized || ex.status == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrInvalidCredential, apiErr)
	case credentialCall:
		return fmt.Errorf("%w: %v", ErrInvalidCredential, apiErr)
	}
	return apiErr
}

func (c *GoTrueClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	client, ex := c.session(ctx, accessToken)
	resp, err := client.GetUser()
	if err := classify(err, ex, true); err != nil {
		return nil, err
	}
	return fromUser(resp.User), nil
}

func (c *GoTrueClient) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	client, ex := c.session(ctx, "")
	resp, err := client.RefreshToken(refreshToken)
	if err := classify(err, ex, true); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, ErrInvalidCredential
	}
	return &Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    int(resp.ExpiresIn),
		ExpiresAt:    int64(resp.ExpiresAt),
		User:         fromUser(resp.User),
	}, nil
}

func (c *GoTrueClient) SignOut(ctx context.Context, accessToken string) error {
	client, ex := c.session(ctx, accessToken)
	err := classify(client.Logout(), ex, false)
	// an already-dead session is signed out
	if errors.Is(err, ErrInvalidCredential) {
		return nil
	}
	return err
}

func (c *GoTrueClient) CreateUser(ctx context.Context, params AdminUserParams) (*User, error) {
	client, ex := c.session(ctx, c.serviceRoleKey)
	password := params.Password
	resp, err := client.AdminCreateUser(types.AdminCreateUserRequest{
		Email:        params.Email,
		Password:     &password,
		EmailConfirm: params.EmailConfirm,
		AppMetadata:  params.AppMetadata,
		UserMetadata: params.UserMetadata,
	})
	if err := classify(err, ex, false); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && isUserExists(apiErr) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return fromUser(resp.User), nil
}

func (c *GoTrueClient) EnrollTOTP(ctx context.Context, accessToken, friendlyName string) (*TOTPEnrollment, error) {
	client, ex := c.session(ctx, accessToken)
	resp, err := client.EnrollFactor(types.EnrollFactorRequest{
		FriendlyName: friendlyName,
		FactorType:   types.FactorTypeTOTP,
	})
	if err := classify(err, ex, false); err != nil {
		return nil, err
	}
	return &TOTPEnrollment{
		FactorID: resp.ID.String(),
		QRCode:   resp.TOTP.QRCode,
		Secret:   resp.TOTP.Secret,
		URI:      resp.TOTP.URI,
	}, nil
}

func (c *GoTrueClient) ChallengeFactor(ctx context.Context, accessToken, factorID string) (string, error) {
	id, err := uuid.Parse(factorID)
	if err != nil {
		return "", &APIError{Status: http.StatusBadRequest, Message: "malformed factor id"}
	}
	client, ex := c.session(ctx, accessToken)
	resp, err := client.ChallengeFactor(types.ChallengeFactorRequest{FactorID: id})
	if err := classify(err, ex, false); err != nil {
		return "", err
	}
	return resp.ID.String(), nil
}

func (c *GoTrueClient) VerifyFactor(ctx context.Context, accessToken, factorID, challengeID, code string) error {
	fid, err := uuid.Parse(factorID)
	if err != nil {
		return ErrInvalidCode
	}
	cid, err := uuid.Parse(challengeID)
	if err != nil {
		return ErrInvalidCode
	}
	client, ex := c.session(ctx, accessToken)
	_, err = client.VerifyFactor(types.VerifyFactorRequest{
		FactorID:    fid,
		ChallengeID: cid,
		Code:        code,
	})
	err = classify(err, ex, false)
	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnprocessableEntity) {
		return ErrInvalidCode
	}
	return err
}

func fromUser(u types.User) *User {
	user := &User{
		ID:           u.ID,
		Email:        u.Email,
		AppMetadata:  u.AppMetadata,
		UserMetadata: u.UserMetadata,
		LastSignInAt: u.LastSignInAt,
	}
	for _, f := range u.Factors {
		user.Factors = append(user.Factors, Factor{
			ID:           f.ID.String(),
			FriendlyName: f.FriendlyName,
			FactorType:   string(f.FactorType),
			Status:       string(f.Status),
		})
	}
	return user
}

func decodeAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{Status: status}

	var body struct {
		ErrorCode        string `json:"error_code"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		return apiErr
	}

	apiErr.Code = body.ErrorCode
	if apiErr.Code == "" {
		apiErr.Code = body.Error
	}
	for _, m := range []string{body.Msg, body.Message, body.ErrorDescription, body.Error} {
		if m != "" {
			apiErr.Message = m
			break
		}
	}
	return apiErr
}

func isUserExists(e *APIError) bool {
	if e.Code == "email_exists" || e.Code == "user_already_exists" {
		return true
	}
	return e.Status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(e.Message), "already been registered")
}
