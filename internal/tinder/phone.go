package tinder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// PhoneAuth drives the upstream OTP phone login flow: send an SMS code,
// exchange it for a refresh token, then exchange that for an auth token.
type PhoneAuth struct {
	baseURL string
	http    *http.Client
}

// NewPhoneAuth constructs a PhoneAuth against the given auth base URL.
func NewPhoneAuth(baseURL string) *PhoneAuth {
	return &PhoneAuth{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SendOTP asks upstream to send an SMS code to the phone number.
func (p *PhoneAuth) SendOTP(ctx context.Context, phone string) (bool, error) {
	body := map[string]string{"phone_number": phone}
	var resp struct {
		Data struct {
			SMSSent bool `json:"sms_sent"`
		} `json:"data"`
	}
	if errPost := p.post(ctx, "/sms/send?auth_type=sms", body, &resp); errPost != nil {
		return false, &LoginError{Err: errPost}
	}
	return resp.Data.SMSSent, nil
}

// RefreshToken exchanges an OTP code for a refresh token.
func (p *PhoneAuth) RefreshToken(ctx context.Context, otpCode, phone string) (string, error) {
	body := map[string]string{"otp_code": otpCode, "phone_number": phone, "is_update": "false"}
	var resp struct {
		Data struct {
			RefreshToken string `json:"refresh_token"`
			Validated    bool   `json:"validated"`
		} `json:"data"`
	}
	if errPost := p.post(ctx, "/sms/validate?auth_type=sms", body, &resp); errPost != nil {
		return "", &LoginError{Err: errPost}
	}
	if !resp.Data.Validated || resp.Data.RefreshToken == "" {
		return "", &LoginError{Err: fmt.Errorf("otp validation rejected")}
	}
	return resp.Data.RefreshToken, nil
}

// AuthToken exchanges a refresh token for an API auth token.
func (p *PhoneAuth) AuthToken(ctx context.Context, refreshToken string) (string, error) {
	body := map[string]string{"refresh_token": refreshToken}
	var resp struct {
		Data struct {
			APIToken string `json:"api_token"`
		} `json:"data"`
	}
	if errPost := p.post(ctx, "/login/sms", body, &resp); errPost != nil {
		return "", &LoginError{Err: errPost}
	}
	if resp.Data.APIToken == "" {
		return "", &LoginError{Err: fmt.Errorf("no api token returned")}
	}
	return resp.Data.APIToken, nil
}

func (p *PhoneAuth) post(ctx context.Context, route string, body any, out any) error {
	payload, errMarshal := json.Marshal(body)
	if errMarshal != nil {
		return fmt.Errorf("marshal body: %w", errMarshal)
	}
	req, errNew := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+route, bytes.NewReader(payload))
	if errNew != nil {
		return fmt.Errorf("build request: %w", errNew)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, errDo := p.http.Do(req)
	if errDo != nil {
		return fmt.Errorf("POST %s: %w", route, errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{Method: http.MethodPost, Route: route, StatusCode: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if errDecode := json.NewDecoder(resp.Body).Decode(out); errDecode != nil {
		return fmt.Errorf("decode POST %s: %w", route, errDecode)
	}
	return nil
}
