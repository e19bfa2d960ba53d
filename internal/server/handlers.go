package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/leapstack-labs/leapconn/pkg/connstr"
	"github.com/leapstack-labs/leapconn/pkg/datadir"
	"github.com/leapstack-labs/leapconn/pkg/entityclient"
	"github.com/leapstack-labs/leapconn/pkg/provider"
)

const (
	maxBodyBytes = 1 << 20
	pingTimeout  = 10 * time.Second
)

type pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type parseRequest struct {
	ConnectionString string `json:"connection_string"`
	Synonyms         string `json:"synonyms"`
}

type parseResponse struct {
	Empty      bool              `json:"empty"`
	Entries    map[string]string `json:"entries"`
	Chain      []pair            `json:"chain"`
	Normalized string            `json:"normalized"`
}

type resolveRequest struct {
	ConnectionString string `json:"connection_string"`
}

type resolveResponse struct {
	Name                        string   `json:"name,omitempty"`
	Empty                       bool     `json:"empty"`
	Metadata                    []string `json:"metadata"`
	Provider                    string   `json:"provider"`
	ProviderConnectionString    string   `json:"provider_connection_string"`
	HasProviderConnectionString bool     `json:"has_provider_connection_string"`
}

type pingRequest struct {
	ConnectionString string `json:"connection_string"`
	Provider         string `json:"provider,omitempty"`
}

type pingResponse struct {
	Status    string   `json:"status"`
	Provider  string   `json:"provider"`
	Metadata  []string `json:"metadata,omitempty"`
	LatencyMS int64    `json:"latency_ms"`
}

type providerResponse struct {
	Name         string   `json:"name"`
	Driver       string   `json:"driver"`
	Keywords     []string `json:"keywords"`
	PathKeywords []string `json:"path_keywords,omitempty"`
}

type connectionResponse struct {
	Name             string `json:"name"`
	ProviderName     string `json:"provider_name"`
	ConnectionString string `json:"connection_string"`
}

type groupResponse struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Offset  *int   `json:"offset,omitempty"`
	Keyword string `json:"keyword,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	names := provider.List()
	out := make([]providerResponse, 0, len(names))
	for _, name := range names {
		p, err := provider.New(name, s.logger)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, providerResponse{
			Name:         p.Name(),
			Driver:       p.DriverName(),
			Keywords:     p.Synonyms().Canonical(),
			PathKeywords: p.PathKeywords(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleConnections(w http.ResponseWriter, _ *http.Request) {
	cfg := s.Config()
	names := make([]string, 0, len(cfg.Connections))
	for name := range cfg.Connections {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]connectionResponse, 0, len(names))
	for _, name := range names {
		cc := cfg.Connections[name]
		out = append(out, connectionResponse{
			Name:             name,
			ProviderName:     cc.ProviderName,
			ConnectionString: redact(cc.ConnectionString),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePool(w http.ResponseWriter, _ *http.Request) {
	groups := s.pool.Groups()
	out := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupResponse{ID: g.ID.String(), Provider: g.Provider})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	synonyms, err := s.synonyms(req.Synonyms)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	opts, err := connstr.Parse(req.ConnectionString, synonyms)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	entries := opts.Entries()
	for k, v := range entries {
		entries[k] = connstr.RedactValue(k, v)
	}
	chain := make([]pair, 0, opts.Chain().Len())
	for _, p := range opts.Chain().All() {
		chain = append(chain, pair{Key: p.Key, Value: connstr.RedactValue(p.Key, p.Value)})
	}

	writeJSON(w, http.StatusOK, parseResponse{
		Empty:      opts.IsEmpty(),
		Entries:    entries,
		Chain:      chain,
		Normalized: opts.Redacted(),
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	settings, err := entityclient.NewResolver(s.Config(), s.logger).Resolve(req.ConnectionString)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{
		Name:                        settings.Name,
		Empty:                       settings.IsEmpty(),
		Metadata:                    append([]string{}, settings.Metadata...),
		Provider:                    settings.Provider,
		ProviderConnectionString:    redact(settings.ProviderConnectionString),
		HasProviderConnectionString: settings.HasProviderConnectionString,
	})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	var req pingRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	start := time.Now()
	resp, err := s.ping(ctx, req)
	if err != nil {
		status := http.StatusBadGateway
		if isClientError(err) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err)
		return
	}
	resp.LatencyMS = time.Since(start).Milliseconds()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) ping(ctx context.Context, req pingRequest) (*pingResponse, error) {
	if strings.TrimSpace(req.Provider) != "" {
		p, err := provider.New(req.Provider, s.logger)
		if err != nil {
			return nil, err
		}
		db, err := s.pool.Acquire(ctx, p, req.ConnectionString)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			return nil, err
		}
		return &pingResponse{Status: "ok", Provider: p.Name()}, nil
	}

	conn := entityclient.NewConnection(entityclient.NewResolver(s.Config(), s.logger), s.pool, s.logger)
	if err := conn.ChangeConnectionString(req.ConnectionString); err != nil {
		return nil, err
	}
	if err := conn.Open(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	p, err := conn.Provider()
	if err != nil {
		return nil, err
	}
	return &pingResponse{Status: "ok", Provider: p.Name(), Metadata: conn.MetadataPaths()}, nil
}

// synonyms selects a keyword table: none, entity or a provider name.
func (s *Server) synonyms(name string) (connstr.Synonyms, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return nil, nil
	case "entity", entityclient.EntityClientProviderName:
		return entityclient.Keywords, nil
	}
	p, err := provider.New(name, s.logger)
	if err != nil {
		return nil, err
	}
	return p.Synonyms(), nil
}

// isClientError reports whether err stems from the request rather than
// the store.
func isClientError(err error) bool {
	var unknown *provider.UnknownProviderError
	var missing *entityclient.MissingKeywordError
	var nested *entityclient.NestedNamedConnectionError
	var invalid *datadir.InvalidValueError
	return errors.Is(err, connstr.ErrMalformed) ||
		errors.Is(err, connstr.ErrUnsupportedKeyword) ||
		errors.Is(err, entityclient.ErrExtraParametersWithName) ||
		errors.Is(err, entityclient.ErrInvalidNamedConnection) ||
		errors.Is(err, entityclient.ErrNoConnectionString) ||
		errors.As(err, &unknown) ||
		errors.As(err, &missing) ||
		errors.As(err, &nested) ||
		errors.As(err, &invalid)
}

// redact masks secrets in a connection string for responses.
func redact(cs string) string {
	if cs == "" {
		return ""
	}
	opts, err := connstr.Parse(cs, nil)
	if err != nil {
		return "(unparseable)"
	}
	return opts.Redacted()
}

func decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body: "+err.Error()))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: err.Error()}
	var syntaxErr *connstr.SyntaxError
	if errors.As(err, &syntaxErr) {
		offset := syntaxErr.Offset
		resp.Offset = &offset
	}
	var keywordErr *connstr.KeywordError
	if errors.As(err, &keywordErr) {
		resp.Keyword = keywordErr.Keyword
	}
	writeJSON(w, status, resp)
}
