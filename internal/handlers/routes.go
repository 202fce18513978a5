// internal/handlers/routes.go
package handlers

import (
	"net/http"

	"github.com/ammerola/shelfstock-be/internal/handlers/middleware"
)

// Routes groups the handlers served by the API. Nil handlers leave their
// routes unregistered.
type Routes struct {
	Sales   *SaleHandler
	Product *ProductHandler
	Export  *ExportHandler
	Import  *ImportHandler
	Reports *ReportHandler
	Health  *HealthHandler

	// MaxBodyBytes bounds JSON request bodies; zero means 1 MiB.
	MaxBodyBytes int64
	// MaxUploadBytes bounds multipart uploads.
	MaxUploadBytes int64
}

// Register installs every route on mux using method-specific patterns
func (rt Routes) Register(mux *http.ServeMux) {
	const apiV1 = "/api/v1"

	bodyLimit := rt.MaxBodyBytes
	if bodyLimit <= 0 {
		bodyLimit = 1 << 20
	}
	limited := func(h http.HandlerFunc) http.Handler {
		return middleware.MaxBodySize(bodyLimit)(h)
	}

	if rt.Health != nil {
		mux.HandleFunc("GET /health", rt.Health.Health)
		mux.HandleFunc("GET /health/live", rt.Health.Liveness)
		mux.HandleFunc("GET /health/ready", rt.Health.Readiness)
	}

	if rt.Sales != nil {
		// the unversioned path is kept for existing clients
		mux.Handle("POST /products/process-sale", limited(rt.Sales.ProcessSale))
		mux.Handle("POST "+apiV1+"/products/process-sale", limited(rt.Sales.ProcessSale))
		mux.HandleFunc("GET "+apiV1+"/sales/{id}", rt.Sales.GetSale)
		mux.HandleFunc("GET "+apiV1+"/sales", rt.Sales.ListSales)
	}

	if rt.Product != nil {
		mux.Handle("POST "+apiV1+"/products", limited(rt.Product.CreateProduct))
		mux.HandleFunc("GET "+apiV1+"/products/{id}", rt.Product.GetProduct)
		mux.HandleFunc("GET "+apiV1+"/products/{id}/batches", rt.Product.GetBatches)
		mux.Handle("POST "+apiV1+"/products/{id}/batches", limited(rt.Product.Restock))
	}

	if rt.Export != nil {
		mux.HandleFunc("GET "+apiV1+"/export/sales", rt.Export.ExportSales)
	}

	if rt.Import != nil {
		uploadLimit := rt.MaxUploadBytes
		if uploadLimit <= 0 {
			uploadLimit = 20 << 20
		}
		mux.Handle("POST "+apiV1+"/import/restock-pdf",
			middleware.MaxBodySize(uploadLimit+1<<16)(http.HandlerFunc(rt.Import.ImportRestockPDF)))
		mux.HandleFunc("GET "+apiV1+"/import/restock-pdf/{importId}", rt.Import.ImportStatus)
	}

	if rt.Reports != nil {
		mux.HandleFunc("GET "+apiV1+"/reports/expiring", rt.Reports.ExpiringBatches)
		mux.Handle("POST "+apiV1+"/reports/jobs", limited(rt.Reports.ScheduleReport))
	}
}
