package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"

	"github.com/mdtanrikulu/dnssec-oracle/api"
	"github.com/mdtanrikulu/dnssec-oracle/dnssec"
	"github.com/mdtanrikulu/dnssec-oracle/log"
	"github.com/mdtanrikulu/dnssec-oracle/oracle"
	"github.com/mdtanrikulu/dnssec-oracle/prover"
	"github.com/mdtanrikulu/dnssec-oracle/util"
	"github.com/mdtanrikulu/dnssec-oracle/web"
)

const (
	maxBodySize       = 1 << 20
	defaultAuditLimit = 50

	anonymousCaller = "anonymous"
	bearerPrefix    = "Bearer "
)

var errProverDisabled = errors.New("no upstream configured to collect proofs")

// registry exposes one of the oracle's id to handler bindings
type registry struct {
	lookup func(id uint8) (string, bool)
	list   func() map[uint8]string
	set    func(ctx context.Context, caller string, id uint8, handler string) error
}

func (s *Server) registerAPIEndpoints(router chi.Router) {
	router.Get(api.PathAnchors, s.apiAnchors)
	router.Put(api.PathAnchors, s.apiRotateAnchors)

	router.Route(api.PathAlgorithms, s.registryRoutes(registry{
		lookup: s.oracle.Algorithm,
		list:   s.oracle.Algorithms,
		set:    s.oracle.SetAlgorithm,
	}))

	router.Route(api.PathDigests, s.registryRoutes(registry{
		lookup: s.oracle.Digest,
		list:   s.oracle.Digests,
		set:    s.oracle.SetDigest,
	}))

	router.Post(api.PathVerify, s.apiVerify)
	router.Post(api.PathProve, s.apiProve)
	router.Get(api.PathAudit, s.apiAudit)
}

func (s *Server) registryRoutes(reg registry) func(r chi.Router) {
	return func(r chi.Router) {
		r.Get("/", func(rw http.ResponseWriter, req *http.Request) {
			bindings := reg.list()
			res := make([]api.BindingResult, 0, len(bindings))

			for _, id := range sortedIDs(bindings) {
				res = append(res, api.BindingResult{ID: id, Handler: bindings[id]})
			}

			writeJSON(rw, req, http.StatusOK, res)
		})

		r.Get("/{id}", func(rw http.ResponseWriter, req *http.Request) {
			id, err := parseID(req)
			if err != nil {
				writeError(rw, req, http.StatusBadRequest, err)

				return
			}

			handler, ok := reg.lookup(id)
			if !ok {
				writeError(rw, req, http.StatusNotFound, fmt.Errorf("no handler bound to id %d", id))

				return
			}

			writeJSON(rw, req, http.StatusOK, api.BindingResult{ID: id, Handler: handler})
		})

		r.Put("/{id}", func(rw http.ResponseWriter, req *http.Request) {
			id, err := parseID(req)
			if err != nil {
				writeError(rw, req, http.StatusBadRequest, err)

				return
			}

			var request api.BindingRequest
			if !decodeBody(rw, req, &request) {
				return
			}

			if request.Handler == "" {
				writeError(rw, req, http.StatusBadRequest, errors.New("handler is required"))

				return
			}

			if err := reg.set(req.Context(), s.caller(req), id, request.Handler); err != nil {
				writeError(rw, req, statusOf(err), err)

				return
			}

			writeJSON(rw, req, http.StatusOK, api.BindingResult{ID: id, Handler: request.Handler})
		})
	}
}

func (s *Server) anchorsResult() api.AnchorsResult {
	anchors := s.oracle.Anchors()

	res := api.AnchorsResult{
		Version: s.oracle.AnchorsVersion(),
		Anchors: make([]api.Anchor, len(anchors)),
		Wire:    util.EncodeHex(s.oracle.AnchorsBytes()),
	}

	for i, a := range anchors {
		res.Anchors[i] = api.Anchor{Record: a.Record.String(), KeyTag: a.KeyTag()}
	}

	return res
}

func (s *Server) apiAnchors(rw http.ResponseWriter, req *http.Request) {
	writeJSON(rw, req, http.StatusOK, s.anchorsResult())
}

func (s *Server) apiRotateAnchors(rw http.ResponseWriter, req *http.Request) {
	var request api.AnchorsRequest
	if !decodeBody(rw, req, &request) {
		return
	}

	if len(request.Records) == 0 {
		writeError(rw, req, http.StatusBadRequest, errors.New("anchor set must not be empty"))

		return
	}

	if _, err := dnssec.ParseTrustAnchors(request.Records); err != nil {
		writeError(rw, req, http.StatusBadRequest, err)

		return
	}

	if _, err := s.oracle.RotateAnchors(req.Context(), s.caller(req), request.Records); err != nil {
		writeError(rw, req, statusOf(err), err)

		return
	}

	writeJSON(rw, req, http.StatusOK, s.anchorsResult())
}

func (s *Server) apiVerify(rw http.ResponseWriter, req *http.Request) {
	var request api.VerifyRequest
	if !decodeBody(rw, req, &request) {
		return
	}

	proof, err := api.DecodeProof(request.Proof)
	if err != nil {
		writeError(rw, req, http.StatusBadRequest, err)

		return
	}

	now := dnssec.Timestamp(s.now())
	if request.Now != nil {
		now = *request.Now
	}

	res, err := s.oracle.VerifyRRSet(req.Context(), proof, now)
	if err != nil {
		writeError(rw, req, statusOf(err), err)

		return
	}

	result, err := api.NewVerifyResult(res)
	if err != nil {
		writeError(rw, req, http.StatusInternalServerError, err)

		return
	}

	writeJSON(rw, req, http.StatusOK, result)
}

func (s *Server) apiProve(rw http.ResponseWriter, req *http.Request) {
	var request api.ProveRequest
	if !decodeBody(rw, req, &request) {
		return
	}

	if strings.TrimSpace(request.Name) == "" {
		writeError(rw, req, http.StatusBadRequest, errors.New("name is required"))

		return
	}

	qType, err := ParseType(request.Type)
	if err != nil {
		writeError(rw, req, http.StatusBadRequest, err)

		return
	}

	if s.prover == nil {
		writeError(rw, req, http.StatusServiceUnavailable, errProverDisabled)

		return
	}

	proof, err := s.prover.QueryWithProof(req.Context(), qType, request.Name)
	if err != nil {
		status := statusOf(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}

		writeError(rw, req, status, err)

		return
	}

	result := api.ProveResult{Proof: api.NewProof(proof.Steps)}

	res, err := s.oracle.VerifyRRSet(req.Context(), proof.Steps, dnssec.Timestamp(s.now()))
	if err != nil {
		result.Error = api.NewErrorResponse(err)

		writeJSON(rw, req, statusOf(err), result)

		return
	}

	result.Result, err = api.NewVerifyResult(res)
	if err != nil {
		writeError(rw, req, http.StatusInternalServerError, err)

		return
	}

	writeJSON(rw, req, http.StatusOK, result)
}

func (s *Server) apiAudit(rw http.ResponseWriter, req *http.Request) {
	limit := defaultAuditLimit

	if l := req.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeError(rw, req, http.StatusBadRequest, fmt.Errorf("invalid limit '%s'", log.EscapeInput(l)))

			return
		}

		limit = n
	}

	entries, err := s.oracle.AuditTrail(req.Context(), limit)
	if err != nil {
		writeError(rw, req, http.StatusInternalServerError, err)

		return
	}

	writeJSON(rw, req, http.StatusOK, entries)
}

// caller returns the owner if the request carries the admin token
func (s *Server) caller(req *http.Request) string {
	token := s.cfg.Oracle.Token
	auth := req.Header.Get("Authorization")

	if token == "" || !strings.HasPrefix(auth, bearerPrefix) {
		return anonymousCaller
	}

	if subtle.ConstantTimeCompare([]byte(strings.TrimPrefix(auth, bearerPrefix)), []byte(token)) != 1 {
		return anonymousCaller
	}

	return s.oracle.Owner()
}

// ParseType converts a record type name, TXT if empty
func ParseType(in string) (uint16, error) {
	if in == "" {
		return dns.TypeTXT, nil
	}

	qType, ok := dns.StringToType[strings.ToUpper(strings.TrimSpace(in))]
	if !ok {
		return 0, fmt.Errorf("unknown query type '%s'", log.EscapeInput(in))
	}

	return qType, nil
}

func parseID(req *http.Request) (uint8, error) {
	raw := chi.URLParam(req, "id")

	id, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid id '%s'", log.EscapeInput(raw))
	}

	return uint8(id), nil
}

func statusOf(err error) int {
	var vErr *dnssec.Error

	switch {
	case errors.Is(err, dnssec.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, oracle.ErrUnknownHandler):
		return http.StatusBadRequest
	case errors.Is(err, prover.ErrNoRecords):
		return http.StatusNotFound
	case errors.As(err, &vErr), errors.Is(err, prover.ErrUnsigned):
		return http.StatusUnprocessableEntity
	}

	return http.StatusInternalServerError
}

func decodeBody(rw http.ResponseWriter, req *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(rw, req.Body, maxBodySize)).Decode(v); err != nil {
		writeError(rw, req, http.StatusBadRequest, fmt.Errorf("can't read request: %w", err))

		return false
	}

	return true
}

func writeJSON(rw http.ResponseWriter, req *http.Request, status int, v interface{}) {
	rw.Header().Set(api.ContentTypeHeader, api.JSONContentType)
	rw.WriteHeader(status)

	if err := json.NewEncoder(rw).Encode(v); err != nil {
		log.FromCtx(req.Context()).Error("unable to write response ", err)
	}
}

func writeError(rw http.ResponseWriter, req *http.Request, status int, err error) {
	logger := log.FromCtx(req.Context()).WithField("status", status)

	if status >= http.StatusInternalServerError {
		logger.Error("request failed: ", err)
	} else {
		logger.Debug("request rejected: ", err)
	}

	writeJSON(rw, req, status, api.NewErrorResponse(err))
}

func createRouter() *chi.Mux {
	router := chi.NewRouter()

	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	configureCorsHandler(router)

	configureDebugHandler(router)

	return router
}

// requestLogger carries a logger with a unique request id in the request context
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		reqID := uuid.New().String()

		ctx, entry := log.NewCtx(req.Context(), logger().WithFields(logrus.Fields{
			"req_id": reqID,
			"method": req.Method,
			"path":   log.EscapeInput(req.URL.Path),
		}))

		ww := middleware.NewWrapResponseWriter(rw, req.ProtoMajor)
		ww.Header().Set("X-Request-Id", reqID)

		start := time.Now()

		next.ServeHTTP(ww, req.WithContext(ctx))

		entry.WithFields(logrus.Fields{
			"status":           ww.Status(),
			"response_time_ms": time.Since(start).Milliseconds(),
		}).Debug("request handled")
	})
}

func (s *Server) configureRootHandler(router *chi.Mux) {
	router.Get("/", func(writer http.ResponseWriter, request *http.Request) {
		t := template.New("index")
		_, _ = t.Parse(web.IndexTmpl)

		type HandlerLink struct {
			URL   string
			Title string
		}

		type PageData struct {
			Links          []HandlerLink
			AnchorsVersion uint64
			Version        string
			BuildTime      string
		}

		pd := PageData{
			Links: []HandlerLink{
				{URL: api.PathAnchors, Title: "Trust anchors"},
				{URL: api.PathAlgorithms, Title: "Signature algorithms"},
				{URL: api.PathDigests, Title: "Digest algorithms"},
				{URL: api.PathAudit, Title: "Audit trail"},
				{URL: "/debug/", Title: "Go Profiler"},
			},
			AnchorsVersion: s.oracle.AnchorsVersion(),
			Version:        util.Version,
			BuildTime:      util.BuildTime,
		}

		if s.cfg.Prometheus.Enable {
			pd.Links = append(pd.Links, HandlerLink{
				URL:   s.cfg.Prometheus.Path,
				Title: "Prometheus endpoint",
			})
		}

		err := t.Execute(writer, pd)
		if err != nil {
			log.Log().Error("can't write index template: ", err)
			writer.WriteHeader(http.StatusInternalServerError)
		}
	})
}

func configureDebugHandler(router *chi.Mux) {
	router.Mount("/debug", middleware.Profiler())
}

func configureCorsHandler(router *chi.Mux) {
	crs := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	router.Use(crs.Handler)
}
