// routes.go — регистрация маршрутов Product Module в chi.
// Параметры пути разбираются через runtime oapi-codegen так же,
// как в сгенерированных обёртках chi-server.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/bigkaa/goartstore/product-module/internal/api/errors"
)

// ServerInterface — обработчики всех маршрутов Product Module.
type ServerInterface interface {
	// (GET /health/live)
	HealthLive(w http.ResponseWriter, r *http.Request)
	// (GET /health/ready)
	HealthReady(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	GetMetrics(w http.ResponseWriter, r *http.Request)
	// (GET /api/v1/openapi.json)
	GetOpenAPI(w http.ResponseWriter, r *http.Request)
	// (GET /api/v1/products)
	ListProducts(w http.ResponseWriter, r *http.Request)
	// (POST /api/v1/products)
	CreateProduct(w http.ResponseWriter, r *http.Request)
	// (GET /api/v1/products/{id})
	GetProduct(w http.ResponseWriter, r *http.Request, id string)
	// (PATCH /api/v1/products/{id})
	UpdateProduct(w http.ResponseWriter, r *http.Request, id string)
	// (DELETE /api/v1/products/{id})
	DeleteProduct(w http.ResponseWriter, r *http.Request, id string)
	// (GET /assets/{bucket}/*)
	GetAsset(w http.ResponseWriter, r *http.Request, bucket, key string)
	// (GET /)
	ListPage(w http.ResponseWriter, r *http.Request)
	// (POST /)
	CreateFromPage(w http.ResponseWriter, r *http.Request)
	// (GET /product/{id})
	DetailPage(w http.ResponseWriter, r *http.Request, id string)
}

// HandlerFromMux регистрирует маршруты ServerInterface на router.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.NotFound(w, "Маршрут не найден")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apierrors.MethodNotAllowed(w, fmt.Sprintf("Метод %s не поддерживается", req.Method))
	})

	r.Get("/health/live", si.HealthLive)
	r.Get("/health/ready", si.HealthReady)
	r.Get("/metrics", si.GetMetrics)
	r.Get("/api/v1/openapi.json", si.GetOpenAPI)

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", si.ListProducts)
		r.Post("/", si.CreateProduct)
		r.Get("/{id}", withProductID(si.GetProduct))
		r.Patch("/{id}", withProductID(si.UpdateProduct))
		r.Delete("/{id}", withProductID(si.DeleteProduct))
	})

	asset := func(w http.ResponseWriter, req *http.Request) {
		si.GetAsset(w, req, chi.URLParam(req, "bucket"), chi.URLParam(req, "*"))
	}
	r.Get("/assets/{bucket}/*", asset)
	r.Head("/assets/{bucket}/*", asset)

	r.Get("/", si.ListPage)
	r.Post("/", si.CreateFromPage)
	r.Get("/product/{id}", withProductID(si.DetailPage))

	return r
}

// withProductID разбирает параметр пути {id} и передаёт его обработчику.
func withProductID(next func(w http.ResponseWriter, r *http.Request, id string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var id string
		err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
			runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
		if err != nil {
			apierrors.ValidationError(w, fmt.Sprintf("Некорректный параметр id: %s", err))
			return
		}
		next(w, r, id)
	}
}
