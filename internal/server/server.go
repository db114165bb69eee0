package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"dicecup/internal/cup"
	"dicecup/internal/dice"
	"dicecup/internal/engine"
	"dicecup/internal/engine/auth"
	"dicecup/internal/modifier"
	"dicecup/internal/notation"
	"dicecup/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_notation"`
	Message string         `json:"message" example:"unexpected character"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"offset\":3}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Dicecup API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the requested envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Dicecup API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerRolls(group, cfg.Engine)
	registerInspections(group, cfg.Engine)
	registerSamples(group, cfg.Engine)
	registerExpressions(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerAPIKeys(group, cfg.Engine)
	registerMe(group, cfg.Engine)
	registerDevAuth(group, cfg.Auth)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

var constructionErrors = []error{
	dice.ErrInvalidDie,
	cup.ErrInvalidCup,
	modifier.ErrUnknownOperator,
	modifier.ErrInvalidOperand,
	modifier.ErrUnknownAlgorithm,
	modifier.ErrTooManyDropped,
	modifier.ErrUnknownComparator,
	modifier.ErrInfiniteLoop,
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var syn *notation.SyntaxError
	if errors.As(err, &syn) {
		return newAPIError(http.StatusBadRequest, "invalid_notation", err.Error(), map[string]any{
			"input":    syn.Input,
			"offset":   syn.Offset,
			"fragment": syn.Fragment,
		})
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"permission": fe.Permission})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	for _, sentinel := range constructionErrors {
		if errors.Is(err, sentinel) {
			return newAPIError(http.StatusUnprocessableEntity, "invalid_expression", err.Error(), nil)
		}
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") ||
		strings.Contains(lowered, "required") || strings.Contains(lowered, "exceeds") ||
		strings.Contains(lowered, "must be"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "invalid_expression"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func hasPermission(perms []string, perm string) bool {
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

func requirePermission(ctx context.Context, e engine.Engine, perm string) error {
	principal, authErr := principalFromRequest(ctx)
	if authErr != nil {
		return authErr
	}
	if hasPermission(principal.Permissions, perm) {
		return nil
	}
	ok, err := e.Auth.ActorHasPermission(ctx, principal.ActorID, perm)
	if err != nil {
		return err
	}
	if !ok {
		return auth.ForbiddenError{Permission: perm}
	}
	return nil
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	devLoginPath := path.Join(basePath, "auth/dev/login")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	if !strings.HasPrefix(devLoginPath, "/") {
		devLoginPath = "/" + devLoginPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath || route == devLoginPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Dicecup API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerRolls(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-roll",
		Method:        http.MethodPost,
		Path:          "/rolls",
		Summary:       "Evaluate a dice expression",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body RollRequest `json:"body"`
	}) (*struct {
		Body RollResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if strings.TrimSpace(input.Body.Notation) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "notation is required", nil)
		}
		if err := requirePermission(ctx, e, auth.PermRollExecute); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		roll, err := e.Evaluate(ctx, input.Body.Notation, input.Body.Seed, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RollResponse `json:"body"`
		}{Body: rollResponse(roll)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-rolls",
		Method:      http.MethodGet,
		Path:        "/rolls",
		Summary:     "List recorded rolls",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, auth.PermLogRead); err != nil {
			return nil, handleError(err)
		}
		return listEvents(ctx, e, repo.EventFilters{Type: "roll.executed"}, input.Limit, input.Cursor)
	})
}

func registerInspections(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-inspection",
		Method:      http.MethodPost,
		Path:        "/inspections",
		Summary:     "Report expression bounds without rolling",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body InspectionRequest `json:"body"`
	}) (*struct {
		Body InspectionResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, auth.PermRollExecute); err != nil {
			return nil, handleError(err)
		}
		insp, err := e.Inspect(ctx, input.Body.Notation)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body InspectionResponse `json:"body"`
		}{Body: inspectionResponse(insp)}, nil
	})
}

func registerSamples(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-sample",
		Method:      http.MethodPost,
		Path:        "/samples",
		Summary:     "Summarize repeated rolls of an expression",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body SampleRequest `json:"body"`
	}) (*struct {
		Body SampleResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, auth.PermRollExecute); err != nil {
			return nil, handleError(err)
		}
		sample, err := e.Sample(ctx, input.Body.Notation, input.Body.Trials, input.Body.Seed)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SampleResponse `json:"body"`
		}{Body: sampleResponse(sample)}, nil
	})
}

func registerExpressions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-expressions",
		Method:      http.MethodGet,
		Path:        "/expressions",
		Summary:     "List saved expressions",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ExpressionResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, auth.PermExpressionRead); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListExpressions(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ExpressionResponse `json:"body"`
		}{Body: mapExpressions(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-expression",
		Method:      http.MethodGet,
		Path:        "/expressions/{name}",
		Summary:     "Get a saved expression",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Name string `path:"name"`
	}) (*struct {
		Body ExpressionResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, auth.PermExpressionRead); err != nil {
			return nil, handleError(err)
		}
		expr, err := e.Repo.GetExpression(ctx, input.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ExpressionResponse `json:"body"`
		}{Body: expressionResponse(expr)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "put-expression",
		Method:      http.MethodPut,
		Path:        "/expressions/{name}",
		Summary:     "Create or update a saved expression",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Name string            `path:"name"`
		Body ExpressionRequest `json:"body"`
	}) (*struct {
		Body ExpressionResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, auth.PermExpressionWrite); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		expr, err := e.SaveExpression(ctx, input.Name, input.Body.Notation, input.Body.Description, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ExpressionResponse `json:"body"`
		}{Body: expressionResponse(expr)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-expression",
		Method:      http.MethodDelete,
		Path:        "/expressions/{name}",
		Summary:     "Delete a saved expression",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Name string `path:"name"`
	}) (*struct{}, error) {
		if err := requirePermission(ctx, e, auth.PermExpressionWrite); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteExpression(ctx, input.Name, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "roll-expression",
		Method:        http.MethodPost,
		Path:          "/expressions/{name}/rolls",
		Summary:       "Roll a saved expression",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		Name string `path:"name"`
		Seed string `query:"seed"`
	}) (*struct {
		Body RollResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, auth.PermRollExecute); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var seed *int64
		if input.Seed != "" {
			parsed, err := strconv.ParseInt(input.Seed, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid seed", map[string]any{"seed": input.Seed})
			}
			seed = &parsed
		}
		roll, err := e.EvaluateExpression(ctx, input.Name, seed, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RollResponse `json:"body"`
		}{Body: rollResponse(roll)}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"roll,expression,apikey,"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, auth.PermLogRead); err != nil {
			return nil, handleError(err)
		}
		filters := repo.EventFilters{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
		}
		return listEvents(ctx, e, filters, input.Limit, input.Cursor)
	})
}

func listEvents(ctx context.Context, e engine.Engine, filters repo.EventFilters, limit int, cursor string) (*struct {
	Body paginatedEvents `json:"body"`
}, error) {
	filters.Limit = normalizeLimit(limit) + 1
	if cursor != "" {
		parsed, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": cursor})
		}
		filters.Cursor = parsed
	}
	items, err := e.Repo.LatestEvents(ctx, filters)
	if err != nil {
		return nil, handleError(err)
	}
	resp := paginatedEvents{Items: []EventResponse{}}
	pageSize := filters.Limit - 1
	if len(items) > pageSize {
		items = items[:pageSize]
		// The query resumes with id < cursor, so hand back the last id shown.
		resp.NextCursor = fmt.Sprintf("%d", items[pageSize-1].ID)
	}
	for _, evt := range items {
		resp.Items = append(resp.Items, eventResponse(evt))
	}
	return &struct {
		Body paginatedEvents `json:"body"`
	}{Body: resp}, nil
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-apikey",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Create an API key",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body APIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, auth.PermAPIKeyAdmin); err != nil {
			return nil, handleError(err)
		}
		callerID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		actorID := strings.TrimSpace(input.Body.ActorID)
		if actorID == "" {
			actorID = callerID
		}
		key, plaintext, err := e.CreateAPIKey(ctx, actorID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		resp := apiKeyResponse(key)
		resp.Key = plaintext
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-apikeys",
		Method:      http.MethodGet,
		Path:        "/apikeys",
		Summary:     "List API keys",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ActorID string `query:"actor_id"`
	}) (*struct {
		Body []APIKeyResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, auth.PermAPIKeyAdmin); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListAPIKeys(ctx, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []APIKeyResponse `json:"body"`
		}{Body: mapAPIKeys(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-apikey",
		Method:      http.MethodDelete,
		Path:        "/apikeys/{id}",
		Summary:     "Delete an API key",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := requirePermission(ctx, e, auth.PermAPIKeyAdmin); err != nil {
			return nil, handleError(err)
		}
		if err := e.Repo.DeleteAPIKey(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerMe(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors: []int{
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		roles := principal.Roles
		perms := principal.Permissions
		if len(perms) == 0 {
			if dbRoles, err := e.Auth.ActorRoles(ctx, principal.ActorID); err == nil && len(roles) == 0 {
				roles = dbRoles
			}
			if dbPerms, err := e.Auth.ActorPermissions(ctx, principal.ActorID); err == nil {
				perms = dbPerms
			}
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{
			ActorID:     principal.ActorID,
			Source:      principal.Source,
			Roles:       nonNilSlice(roles),
			Permissions: nonNilSlice(perms),
		}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, actor, input.Body.Roles, input.Body.Permissions)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
