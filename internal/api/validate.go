package api

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/the-bazaar/bazaar-backend/internal/logging"
)

//go:embed openapi.yaml
var openAPISpec []byte

const maxRequestBody = 1 << 20

// LoadSpec parses and validates the embedded OpenAPI document.
func LoadSpec() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPISpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}
	return doc, nil
}

// requestValidator checks bodies and parameters against the OpenAPI document. It runs
// after the route guards, so callers see auth errors before shape errors.
type requestValidator struct {
	router routers.Router
}

func newRequestValidator(doc *openapi3.T) (*requestValidator, error) {
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build OpenAPI router: %w", err)
	}
	return &requestValidator{router: router}, nil
}

func (v *requestValidator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, params, err := v.router.FindRoute(r)
		if err != nil {
			// every validated route is in the document; a miss is a wiring bug
			logging.FromContext(r.Context()).Error("route missing from OpenAPI document", "path", r.URL.Path, "error", err)
			InternalError("An unexpected error occurred").Write(w)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		err = openapi3filter.ValidateRequest(r.Context(), &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: params,
			Route:      route,
			Options: &openapi3filter.Options{
				MultiError:         true,
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		})
		if err != nil {
			validationFailure(err).Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// validationFailure maps kin-openapi errors onto the error envelope.
// Unparseable bodies are BAD_REQUEST; schema violations are VALIDATION_ERROR
// with one detail per failing field.
func validationFailure(err error) *ErrorBuilder {
	var details []ErrorDetail
	malformed := false

	var walk func(error)
	walk = func(err error) {
		switch e := err.(type) {
		case openapi3.MultiError:
			for _, inner := range e {
				walk(inner)
			}
		case *openapi3filter.ParseError:
			malformed = true
		case *openapi3.SchemaError:
			details = append(details, ErrorDetail{Field: schemaField(e), Message: e.Reason})
		case *openapi3filter.RequestError:
			switch e.Err.(type) {
			case openapi3.MultiError, *openapi3filter.ParseError, *openapi3.SchemaError:
				walk(e.Err)
				return
			}
			field := "body"
			if e.Parameter != nil {
				field = e.Parameter.Name
			}
			msg := e.Reason
			if msg == "" && e.Err != nil {
				msg = e.Err.Error()
			}
			details = append(details, ErrorDetail{Field: field, Message: msg})
		default:
			details = append(details, ErrorDetail{Field: "body", Message: err.Error()})
		}
	}
	walk(err)

	if malformed {
		return BadRequest("Request body must be valid JSON")
	}
	return ValidationErr("Request failed validation", details)
}

func schemaField(e *openapi3.SchemaError) string {
	if ptr := e.JSONPointer(); len(ptr) > 0 {
		return strings.Join(ptr, ".")
	}
	// "required" errors point at the parent object
	if e.SchemaField == "required" {
		if _, rest, ok := strings.Cut(e.Reason, `property "`); ok {
			if name, _, ok := strings.Cut(rest, `"`); ok {
				return name
			}
		}
	}
	return "body"
}
