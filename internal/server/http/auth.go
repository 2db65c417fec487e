package httpserver

import (
	"net"
	"net/http"

	"github.com/ditrix/ditrix-server/internal/authctx"
	"github.com/ditrix/ditrix-server/internal/convert"
	"github.com/ditrix/ditrix-server/internal/service"
)

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.Health.Status(r.Context())
	code := http.StatusOK
	if !st.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, convert.ToHealth(st.OK, st.Components))
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req convert.SignupRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	res, err := s.Auth.Signup(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		s.writeError(w, r, err, "Signup failed")
		return
	}
	writeJSON(w, http.StatusCreated, convert.SignupResponse{
		Status:  convert.StatusOK,
		Profile: convert.ToProfile(res.Profile),
		Notice:  res.Notice,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req convert.LoginRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	res, err := s.Auth.Login(r.Context(), req.Email, req.Password, clientIP(r))
	if err != nil {
		s.writeError(w, r, err, "Login failed")
		return
	}
	writeJSON(w, http.StatusOK, convert.LoginResponse{
		Token:     res.Tokens.AccessToken,
		ExpiresAt: res.Tokens.ExpiresAt,
		Profile:   convert.ToProfile(res.Profile),
		Notice:    service.NoticeLoginSuccess,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.Auth.Logout(r.Context(), authctx.BearerToken(r.Header.Get("Authorization"))); err != nil {
		s.writeError(w, r, err, "Logout failed")
		return
	}
	writeJSON(w, http.StatusOK, convert.MessageResponse{Message: "Logged out successfully"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	exp, err := s.Auth.Refresh(r.Context(), authctx.TokenFromCtx(r.Context()))
	if err != nil {
		s.writeError(w, r, err, "Failed to refresh session")
		return
	}
	writeJSON(w, http.StatusOK, convert.RefreshResponse{Status: convert.StatusOK, ExpiresAt: exp})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	uid, _ := authctx.UserIDFromCtx(r.Context())
	p, err := s.Auth.Session(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, err, "Failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, convert.ProfileResponse{Status: convert.StatusOK, Profile: convert.ToProfile(p)})
}

func codeResponse(res *service.CodeResult) convert.MessageResponse {
	return convert.MessageResponse{Status: convert.StatusOK, Message: res.Message, Notice: res.Notice}
}

func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	var req convert.EmailRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	res, err := s.Auth.Resend(r.Context(), req.Email)
	if err != nil {
		s.writeError(w, r, err, "Failed to send verification email")
		return
	}
	writeJSON(w, http.StatusOK, codeResponse(res))
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req convert.VerifyRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	if err := s.Auth.Verify(r.Context(), req.Email, req.Code); err != nil {
		s.writeError(w, r, err, "Verification failed")
		return
	}
	writeJSON(w, http.StatusOK, convert.MessageResponse{Status: convert.StatusOK, Message: "verified"})
}

func (s *Server) handleForgot(w http.ResponseWriter, r *http.Request) {
	var req convert.EmailRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	res, err := s.Auth.Forgot(r.Context(), req.Email)
	if err != nil {
		s.writeError(w, r, err, "Failed to process request")
		return
	}
	writeJSON(w, http.StatusOK, codeResponse(res))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req convert.ResetRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	if err := s.Auth.Reset(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		s.writeError(w, r, err, "Failed to update password")
		return
	}
	writeJSON(w, http.StatusOK, convert.MessageResponse{Status: convert.StatusOK, Message: "password_reset"})
}
