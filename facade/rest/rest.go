// Package rest exposes a facade.FileManager over HTTP, grounded on the
// teacher's rest_api package: a gin router, one handler per operation, and
// the same bearer-token verification closure (Okta in production, SOP_ENV
// DEV/QA bypasses for local work).
package rest

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	jwtverifier "github.com/okta/okta-jwt-verifier-golang"

	"github.com/hive2hive/h2h"
	"github.com/hive2hive/h2h/dht"
	"github.com/hive2hive/h2h/facade"
	"github.com/hive2hive/h2h/pipeline"
	"github.com/hive2hive/h2h/process"
)

// Server wires a facade.FileManager to an HTTP router under /api/v1.
type Server struct {
	fm     *facade.FileManager
	router *gin.Engine
}

// NewServer builds a Server for fm, registering every route.
func NewServer(fm *facade.FileManager) *Server {
	s := &Server{fm: fm, router: gin.Default()}
	s.registerRoutes()
	return s
}

// Router exposes the underlying gin.Engine, e.g. for httptest.
func (s *Server) Router() *gin.Engine { return s.router }

// Run blocks serving HTTP on addr, mirroring the teacher's router.Run call.
func (s *Server) Run(addr string) error { return s.router.Run(addr) }

func (s *Server) registerRoutes() {
	verify := verifyHeaderToken
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/files", verify(s.getFileList))
		v1.POST("/files", verify(s.add))
		v1.PUT("/files", verify(s.update))
		v1.POST("/files/move", verify(s.move))
		v1.DELETE("/files", verify(s.delete))
		v1.POST("/files/recover", verify(s.recover))
		v1.POST("/files/share", verify(s.share))
	}
}

// verifyHeaderToken mirrors the teacher's verification closure: a handler
// factory that checks the bearer token before delegating to realHandler.
func verifyHeaderToken(realHandler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verify(c) {
			realHandler(c)
		}
	}
}

var toValidate = map[string]string{
	"aud": "api://default",
	"cid": os.Getenv("OKTA_CLIENT_ID"),
}

// verify checks the bearer token in the Authorization header, same
// SOP_ENV-driven DEV/QA bypasses the teacher's rest_main.go uses.
func verify(c *gin.Context) bool {
	if os.Getenv("SOP_ENV") == "DEV" {
		return true
	}

	token := c.Request.Header.Get("Authorization")
	if !strings.HasPrefix(token, "Bearer ") {
		c.String(http.StatusUnauthorized, "Unauthorized")
		return false
	}
	token = strings.TrimPrefix(token, "Bearer ")

	if os.Getenv("SOP_ENV") == "QA" {
		if token == os.Getenv("H2H_QA_TOKEN") {
			return true
		}
	}

	verifierSetup := jwtverifier.JwtVerifier{
		Issuer:           "https://" + os.Getenv("OKTA_DOMAIN") + "/oauth2/default",
		ClaimsToValidate: toValidate,
	}
	if _, err := verifierSetup.New().VerifyAccessToken(token); err != nil {
		c.String(http.StatusForbidden, err.Error())
		return false
	}
	return true
}

// statusFor maps a façade precondition h2h.ErrorCode to an HTTP status; any
// other error (execution/rollback failures surfaced from the process
// framework) is a 500. It goes through h2h.CodedError rather than a type
// switch on a specific h2h.Error[T] instantiation, since the causal error
// surfaced by a failed pipeline's RollbackReason may carry any T (e.g.
// dht.Key160 from dht.Client's errors, not just the façade's string).
func statusFor(err error) int {
	var ce h2h.CodedError
	if !errors.As(err, &ce) {
		return http.StatusInternalServerError
	}
	switch ce.ErrCode() {
	case h2h.IllegalArgument, h2h.IllegalFileLocation:
		return http.StatusBadRequest
	case h2h.FileNotFound:
		return http.StatusNotFound
	case h2h.NoSession:
		return http.StatusUnauthorized
	case h2h.NoPeerConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func (s *Server) getFileList(c *gin.Context) {
	wrapper, err := s.fm.GetFileList(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	paths, err := wrapper.AwaitResult(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paths": paths})
}

func (s *Server) add(c *gin.Context) {
	path := c.Query("path")
	wrapper, err := s.fm.Add(c.Request.Context(), path)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.awaitAccepted(c, wrapper)
}

func (s *Server) update(c *gin.Context) {
	path := c.Query("path")
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	wrapper, err := s.fm.Update(c.Request.Context(), path, payload)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.awaitAccepted(c, wrapper)
}

func (s *Server) move(c *gin.Context) {
	var body struct{ Src, Dst string }
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	wrapper, err := s.fm.Move(c.Request.Context(), body.Src, body.Dst)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.awaitAccepted(c, wrapper)
}

func (s *Server) delete(c *gin.Context) {
	path := c.Query("path")
	wrapper, err := s.fm.Delete(c.Request.Context(), path)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.awaitAccepted(c, wrapper)
}

// recover is the recover handler: it adapts a single CEL expression supplied
// in the request body into a dht.VersionSelector.
func (s *Server) recover(c *gin.Context) {
	var body struct {
		Path       string
		Expression string
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	selector, err := dht.NewCELVersionSelector(body.Expression)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	wrapper, err := s.fm.Recover(c.Request.Context(), body.Path, selector)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.awaitAccepted(c, wrapper)
}

func (s *Server) share(c *gin.Context) {
	var body struct {
		FolderPath string
		UserID     string
		Permission string
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	permission := pipeline.PermissionRead
	if body.Permission == "write" {
		permission = pipeline.PermissionWrite
	}
	wrapper, err := s.fm.Share(c.Request.Context(), body.FolderPath, body.UserID, permission)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.awaitAccepted(c, wrapper)
}

// awaitAccepted reports the started pipeline's handle id with 202 Accepted;
// callers poll getState/getProgress (not modeled over HTTP here) rather
// than block a request goroutine on a potentially long-running pipeline.
func (s *Server) awaitAccepted(c *gin.Context, wrapper *process.AsyncWrapper) {
	c.JSON(http.StatusAccepted, gin.H{"status": "started", "id": wrapper.GetID().String()})
}
