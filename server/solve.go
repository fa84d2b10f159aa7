package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/quizchain/chain"
	"github.com/hazyhaar/quizchain/horosafe"
	"github.com/hazyhaar/quizchain/kit"
)

// SolveRequest is the body of POST /solve and the arguments of the
// quizchain_solve tool. Pointer fields tell a missing key from an empty one.
type SolveRequest struct {
	Email  *string `json:"email"`
	Secret *string `json:"secret"`
	URL    *string `json:"url"`
}

// SolveResponse wraps a chain report.
type SolveResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Result  *chain.Report `json:"result,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// RequestError is a rejected request. Status is the HTTP status it maps to.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string { return e.Message }

func reject(status int, format string, args ...any) *RequestError {
	return &RequestError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// StatusOf returns the HTTP status for an endpoint error.
func StatusOf(err error) int {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Status
	}
	return http.StatusInternalServerError
}

func (req *SolveRequest) validate() error {
	var missing []string
	if req.Email == nil {
		missing = append(missing, "email")
	}
	if req.Secret == nil {
		missing = append(missing, "secret")
	}
	if req.URL == nil {
		missing = append(missing, "url")
	}
	if len(missing) > 0 {
		return reject(http.StatusBadRequest, "missing field(s): %s", strings.Join(missing, ", "))
	}
	if !strings.Contains(*req.Email, "@") {
		return reject(http.StatusUnprocessableEntity, "invalid email address")
	}
	if err := horosafe.CheckHTTPURL(*req.URL); err != nil {
		return reject(http.StatusUnprocessableEntity, "invalid URL: must start with http:// or https://")
	}
	return nil
}

// authorized checks the caller's secret against the bcrypt hash when one is
// configured, otherwise against the plain secret.
func (s *Server) authorized(secret string) bool {
	if s.cfg.SecretBcrypt != "" {
		return bcrypt.CompareHashAndPassword([]byte(s.cfg.SecretBcrypt), []byte(secret)) == nil
	}
	return horosafe.SecretsEqual(s.cfg.Secret, secret)
}

// SolveEndpoint validates a SolveRequest, checks the secret and runs the
// chain with the caller's identity.
func (s *Server) SolveEndpoint() kit.Endpoint {
	return func(ctx context.Context, r any) (any, error) {
		req, ok := r.(*SolveRequest)
		if !ok || req == nil {
			return nil, reject(http.StatusBadRequest, "invalid request")
		}
		if err := req.validate(); err != nil {
			return nil, err
		}
		if !s.authorized(*req.Secret) {
			s.cfg.Logger.Warn("server: invalid secret", "email", *req.Email, "trace_id", kit.GetTraceID(ctx))
			return nil, reject(http.StatusForbidden, "forbidden: invalid secret")
		}

		report := s.cfg.Run(ctx, *req.URL, chain.Identity{Email: *req.Email, Secret: *req.Secret})
		return summarize(report), nil
	}
}

// summarize reports success when the chain completed or at least one quiz
// was submitted.
func summarize(r *chain.Report) *SolveResponse {
	if r.Success || r.TotalQuizzes > 0 {
		return &SolveResponse{Success: true, Message: r.FinalMessage, Result: r}
	}
	resp := &SolveResponse{Success: false, Message: "Failed to solve quiz", Result: r, Error: "Failed to solve quiz"}
	if len(r.Errors) > 0 {
		resp.Error = r.Errors[0].Message
	}
	return resp
}
