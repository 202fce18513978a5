package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/shelfstock-be/internal/adapters/memory"
	redis_a "github.com/ammerola/shelfstock-be/internal/adapters/redis_adapter"
	"github.com/ammerola/shelfstock-be/internal/adapters/report"
	"github.com/ammerola/shelfstock-be/internal/adapters/storage"
	"github.com/ammerola/shelfstock-be/internal/core/domain"
	"github.com/ammerola/shelfstock-be/internal/core/services"
	"github.com/ammerola/shelfstock-be/internal/handlers"
	"github.com/ammerola/shelfstock-be/internal/workers"
	"github.com/ammerola/shelfstock-be/test/helpers"
)

// recordingPublisher stands in for the asynq publisher.
type recordingPublisher struct {
	mu           sync.Mutex
	sales        []uuid.UUID
	imports      []string
	expiryScans  []int
	salesReports []workers.SalesReportPayload
	importErr    error
}

func (p *recordingPublisher) SaleCommitted(_ context.Context, sale *domain.SaleRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sales = append(p.sales, sale.ID)
	return nil
}

func (p *recordingPublisher) RestockImportRequested(_ context.Context, objectKey string, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.importErr != nil {
		return p.importErr
	}
	p.imports = append(p.imports, objectKey)
	return nil
}

func (p *recordingPublisher) ExpiryScanRequested(_ context.Context, warningDays int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiryScans = append(p.expiryScans, warningDays)
	return nil
}

func (p *recordingPublisher) SalesReportRequested(_ context.Context, payload workers.SalesReportPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.salesReports = append(p.salesReports, payload)
	return nil
}

func (p *recordingPublisher) snapshot() (sales []uuid.UUID, imports []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uuid.UUID(nil), p.sales...), append([]string(nil), p.imports...)
}

func (p *recordingPublisher) jobs() ([]int, []workers.SalesReportPayload) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.expiryScans...), append([]workers.SalesReportPayload(nil), p.salesReports...)
}

func (p *recordingPublisher) failImports(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.importErr = err
}

type fakeInspector struct {
	mu    sync.Mutex
	tasks map[string]*asynq.TaskInfo
}

func (f *fakeInspector) put(id string, info *asynq.TaskInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[id] = info
}

func (f *fakeInspector) GetTaskInfo(queue, id string) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if queue != workers.QueueDefault {
		return nil, asynq.ErrQueueNotFound
	}
	info, ok := f.tasks[id]
	if !ok {
		return nil, asynq.ErrTaskNotFound
	}
	return info, nil
}

type apiStack struct {
	server     *httptest.Server
	store      *memory.BatchStore
	storage    *storage.LocalStorage
	storageDir string
	events     *recordingPublisher
	inspector  *fakeInspector
}

func newAPIStack(t *testing.T) *apiStack {
	t.Helper()

	logger := helpers.TestLogger()
	cfg := helpers.LoadTestConfig()

	store := memory.NewBatchStore()
	sales := memory.NewSaleRepository()
	events := &recordingPublisher{}
	inspector := &fakeInspector{tasks: map[string]*asynq.TaskInfo{}}

	dir := t.TempDir()
	files, err := storage.NewLocalStorage(dir, logger)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := redis_a.NewCache(client, time.Hour, logger)

	allocator := services.NewFefoAllocator(store, services.AllocatorConfig{
		MaxAttempts:    cfg.Inventory.MaxAllocationAttempts,
		InitialBackoff: cfg.Inventory.RetryInitialBackoff,
		MaxBackoff:     cfg.Inventory.RetryMaxBackoff,
	}, logger)
	saleService := services.NewSaleProcessor(allocator, store, sales, events, nil, services.DefaultSaleProcessorConfig(), logger)
	stockService := services.NewStockService(store, nil, nil, logger)
	expiry := workers.NewExpiryScanProcessor(store, cache, cfg.Inventory.ExpiryWarningDays, logger)

	mux := http.NewServeMux()
	handlers.Routes{
		Sales:          handlers.NewSaleHandler(saleService, logger),
		Product:        handlers.NewProductHandler(stockService, logger),
		Export:         handlers.NewExportHandler(sales, logger),
		Import:         handlers.NewImportHandler(stockService, files, events, inspector, cfg.Files.ImportPrefix, 1<<20, logger),
		Reports:        handlers.NewReportHandler(expiry, events, logger),
		Health:         handlers.NewHealthHandler(nil, nil, nil, cfg, logger),
		MaxBodyBytes:   cfg.Security.MaxBodyBytes,
		MaxUploadBytes: 1 << 20,
	}.Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &apiStack{
		server:     server,
		store:      store,
		storage:    files,
		storageDir: dir,
		events:     events,
		inspector:  inspector,
	}
}

func (s *apiStack) do(t *testing.T, method, path string, body interface{}) (*http.Response, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return resp, envelope{Data: raw}
	}
	return resp, decodeEnvelope(t, raw)
}

func (s *apiStack) createProduct(t *testing.T, name string, batches ...map[string]interface{}) domain.Product {
	t.Helper()

	resp, env := s.do(t, http.MethodPost, "/api/v1/products", map[string]interface{}{
		"name":       name,
		"perishable": true,
		"batches":    batches,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error)

	var product domain.Product
	require.NoError(t, json.Unmarshal(env.Data, &product))
	return product
}

func batchReq(number string, qty int, expiry string, price string) map[string]interface{} {
	b := map[string]interface{}{"batchNumber": number, "quantity": qty, "price": price}
	if expiry != "" {
		b["expiryDate"] = expiry
	}
	return b
}

func saleReq(items ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"items": items}
}

func item(productID uuid.UUID, qty int) map[string]interface{} {
	return map[string]interface{}{"productId": productID.String(), "quantity": qty}
}

func TestAPI_ProcessSaleAllocatesFEFO(t *testing.T) {
	s := newAPIStack(t)
	soon := time.Now().UTC().AddDate(0, 0, 3).Format("2006-01-02")
	later := time.Now().UTC().AddDate(0, 0, 30).Format("2006-01-02")

	milk := s.createProduct(t, "Milk",
		batchReq("LATER", 10, later, "1.50"),
		batchReq("UNDATED", 10, "", "1.00"),
		batchReq("SOON", 4, soon, "2.00"),
	)

	for _, path := range []string{"/products/process-sale", "/api/v1/products/process-sale"} {
		t.Run(strings.TrimPrefix(path, "/"), func(t *testing.T) {
			before := helpers.QuantitiesByNumber(mustBatches(t, s, milk.ID))

			resp, env := s.do(t, http.MethodPost, path, saleReq(item(milk.ID, 2)))
			require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error)

			var sale domain.SaleRecord
			require.NoError(t, json.Unmarshal(env.Data, &sale))
			assert.Equal(t, domain.SaleCommitted, sale.Status)
			require.Len(t, sale.Lines, 1)
			require.Len(t, sale.Lines[0].Allocations, 1)
			assert.Equal(t, "SOON", sale.Lines[0].Allocations[0].BatchNumber)

			after := helpers.QuantitiesByNumber(mustBatches(t, s, milk.ID))
			assert.Equal(t, before["SOON"]-2, after["SOON"])
			assert.Equal(t, before["LATER"], after["LATER"])
		})
	}

	// SOON is now empty; the next sale spills from LATER into UNDATED
	resp, env := s.do(t, http.MethodPost, "/products/process-sale", saleReq(item(milk.ID, 12)))
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error)
	var sale domain.SaleRecord
	require.NoError(t, json.Unmarshal(env.Data, &sale))
	allocs := sale.Lines[0].Allocations
	require.Len(t, allocs, 2)
	assert.Equal(t, "LATER", allocs[0].BatchNumber)
	assert.Equal(t, 10, allocs[0].Quantity)
	assert.Equal(t, "UNDATED", allocs[1].BatchNumber)
	assert.Equal(t, 2, allocs[1].Quantity)
	assert.Equal(t, "17.00", sale.TotalAmount.StringFixed(2))

	published, _ := s.events.snapshot()
	assert.Len(t, published, 3)
}

func TestAPI_ProcessSaleIsAllOrNothing(t *testing.T) {
	s := newAPIStack(t)

	bread := s.createProduct(t, "Bread", batchReq("B1", 5, "", "3.00"))
	eggs := s.createProduct(t, "Eggs", batchReq("E1", 2, "", "0.40"))

	resp, env := s.do(t, http.MethodPost, "/products/process-sale",
		saleReq(item(bread.ID, 4), item(eggs.ID, 3)))

	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Len(t, env.Failures, 1)
	assert.Equal(t, 1, env.Failures[0].Index)
	assert.Equal(t, eggs.ID.String(), env.Failures[0].ProductID)
	require.NotNil(t, env.Failures[0].Available)
	assert.Equal(t, 2, *env.Failures[0].Available)
	assert.Equal(t, 3, *env.Failures[0].Requested)

	assert.Equal(t, 5, helpers.QuantitiesByNumber(mustBatches(t, s, bread.ID))["B1"])
	assert.Equal(t, 2, helpers.QuantitiesByNumber(mustBatches(t, s, eggs.ID))["E1"])
	published, _ := s.events.snapshot()
	assert.Empty(t, published)

	resp, _ = s.do(t, http.MethodPost, "/products/process-sale", saleReq(item(uuid.New(), 1)))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_ProductReadPathAndRestock(t *testing.T) {
	s := newAPIStack(t)
	cheese := s.createProduct(t, "Cheese", batchReq("C1", 3, "2030-06-01", "4.00"))

	resp, env := s.do(t, http.MethodPost, "/api/v1/products/"+cheese.ID.String()+"/batches",
		batchReq("C0", 6, "2030-01-01", "4.10"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error)

	resp, env = s.do(t, http.MethodGet, "/api/v1/products/"+cheese.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var product domain.Product
	require.NoError(t, json.Unmarshal(env.Data, &product))
	assert.Equal(t, 9, product.TotalQuantity)
	require.Len(t, product.Batches, 2)
	assert.Equal(t, "C0", product.Batches[0].BatchNumber)

	resp, _ = s.do(t, http.MethodPost, "/api/v1/products/"+cheese.ID.String()+"/batches",
		batchReq("C0", 1, "", "1"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/v1/products/"+uuid.NewString()+"/batches", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, http.MethodDelete, "/api/v1/products/"+cheese.ID.String(), nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAPI_SalesHistoryAndExport(t *testing.T) {
	s := newAPIStack(t)
	jam := s.createProduct(t, "Jam", batchReq("J1", 20, "", "5.00"))

	for _, method := range []string{"cash", "card", "card"} {
		body := saleReq(item(jam.ID, 1))
		body["paymentMethod"] = method
		resp, env := s.do(t, http.MethodPost, "/products/process-sale", body)
		require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error)
	}

	resp, env := s.do(t, http.MethodGet, "/api/v1/sales?paymentMethod=card", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list domain.SaleList
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, int64(2), list.TotalCount)

	resp, env = s.do(t, http.MethodGet, "/api/v1/export/sales?format=json", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var exported []domain.SaleRecord
	require.NoError(t, json.Unmarshal(env.Data, &exported))
	assert.Len(t, exported, 3)

	resp, env = s.do(t, http.MethodGet, "/api/v1/export/sales", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, report.ContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

	wb, err := xlsx.OpenBinary(env.Data)
	require.NoError(t, err)
	sheet, ok := wb.Sheet["Sales"]
	require.True(t, ok)
	assert.Equal(t, 4, sheet.MaxRow)
}

func pdfUpload(t *testing.T, productID string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("productId", productID))
	part, err := writer.CreateFormFile("file", "delivery.pdf")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func (s *apiStack) upload(t *testing.T, productID string, content []byte) (*http.Response, envelope) {
	t.Helper()

	body, contentType := pdfUpload(t, productID, content)
	resp, err := s.server.Client().Post(s.server.URL+"/api/v1/import/restock-pdf", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, decodeEnvelope(t, raw)
}

func TestAPI_ImportRestockPDF(t *testing.T) {
	s := newAPIStack(t)
	flour := s.createProduct(t, "Flour")
	pdf := []byte("%PDF-1.4\nBATCH F1 QTY 10 PRICE 1.00\n%%EOF")

	t.Run("queues_import", func(t *testing.T) {
		resp, env := s.upload(t, flour.ID.String(), pdf)
		require.Equal(t, http.StatusAccepted, resp.StatusCode, env.Error)

		var accepted map[string]string
		require.NoError(t, json.Unmarshal(env.Data, &accepted))
		assert.Equal(t, "queued", accepted["status"])
		assert.Equal(t, "imports/restock/"+accepted["importId"]+".pdf", accepted["objectKey"])

		stored, err := s.storage.Download(context.Background(), accepted["objectKey"])
		require.NoError(t, err)
		assert.Equal(t, pdf, stored)
		_, imports := s.events.snapshot()
		assert.Equal(t, []string{accepted["objectKey"]}, imports)

		s.inspector.put(workers.RestockImportTaskID(accepted["objectKey"]), &asynq.TaskInfo{
			State:   asynq.TaskStateRetry,
			Retried: 1,
			LastErr: "storage timeout",
		})
		resp, env = s.do(t, http.MethodGet, "/api/v1/import/restock-pdf/"+accepted["importId"], nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var status map[string]interface{}
		require.NoError(t, json.Unmarshal(env.Data, &status))
		assert.Equal(t, "retry", status["state"])
		assert.Equal(t, "storage timeout", status["lastError"])
		assert.NotContains(t, status, "result")

		s.inspector.put(workers.RestockImportTaskID(accepted["objectKey"]), &asynq.TaskInfo{
			State:  asynq.TaskStateCompleted,
			Result: []byte(`{"lines":1,"restocked":1,"units":10}`),
		})
		resp, env = s.do(t, http.MethodGet, "/api/v1/import/restock-pdf/"+accepted["importId"], nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		status = nil
		require.NoError(t, json.Unmarshal(env.Data, &status))
		assert.Equal(t, "completed", status["state"])
		assert.Equal(t, map[string]interface{}{"lines": float64(1), "restocked": float64(1), "units": float64(10)}, status["result"])
	})

	t.Run("unknown_import", func(t *testing.T) {
		resp, _ := s.do(t, http.MethodGet, "/api/v1/import/restock-pdf/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("rejects_non_pdf", func(t *testing.T) {
		resp, env := s.upload(t, flour.ID.String(), []byte("BATCH F1 QTY 10 PRICE 1.00"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Only PDF files are allowed", env.Error)
	})

	t.Run("unknown_product", func(t *testing.T) {
		resp, _ := s.upload(t, uuid.NewString(), pdf)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("queue_failure_removes_upload", func(t *testing.T) {
		s.events.failImports(errors.New("redis down"))
		defer s.events.failImports(nil)

		resp, env := s.upload(t, flour.ID.String(), pdf)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "Failed to queue import", env.Error)

		_, imports := s.events.snapshot()
		assert.Len(t, imports, 1)
		entries, err := os.ReadDir(filepath.Join(s.storageDir, "imports", "restock"))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestAPI_Reports(t *testing.T) {
	s := newAPIStack(t)
	s.createProduct(t, "Yogurt",
		batchReq("Y1", 3, time.Now().UTC().AddDate(0, 0, 2).Format("2006-01-02"), "1"),
		batchReq("Y2", 5, time.Now().UTC().AddDate(0, 0, 20).Format("2006-01-02"), "1"),
	)

	resp, env := s.do(t, http.MethodGet, "/api/v1/reports/expiring", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rep workers.ExpiryReport
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, 7, rep.WarningDays)
	require.Len(t, rep.Batches, 1)
	assert.Equal(t, "Y1", rep.Batches[0].BatchNumber)
	assert.Equal(t, "Yogurt", rep.Batches[0].ProductName)

	resp, env = s.do(t, http.MethodGet, "/api/v1/reports/expiring?days=30", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, 8, rep.TotalUnits)

	resp, _ = s.do(t, http.MethodGet, "/api/v1/reports/expiring?days=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, env = s.do(t, http.MethodPost, "/api/v1/reports/jobs", map[string]interface{}{
		"kind": "sales", "from": "2025-03-01", "to": "2025-03-08", "paymentMethod": "card",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, env.Error)
	_, reports := s.events.jobs()
	require.Len(t, reports, 1)
	assert.Equal(t, "card", reports[0].PaymentMethod)
	require.NotNil(t, reports[0].From)
	assert.Equal(t, "2025-03-01", reports[0].From.Format("2006-01-02"))

	resp, _ = s.do(t, http.MethodPost, "/api/v1/reports/jobs", map[string]interface{}{"kind": "expiry-scan", "warningDays": 14})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	scans, _ := s.events.jobs()
	assert.Equal(t, []int{14}, scans)

	resp, env = s.do(t, http.MethodPost, "/api/v1/reports/jobs", map[string]interface{}{"kind": "inventory"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "kind: kind failed oneof validation", env.Error)
}

func TestAPI_HealthWithoutOptionalDependencies(t *testing.T) {
	s := newAPIStack(t)

	resp, err := s.server.Client().Get(s.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health handlers.HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "memory", health.Services["store"].Message)
	assert.NotContains(t, health.Services, "database")

	ready, err := s.server.Client().Get(s.server.URL + "/health/ready")
	require.NoError(t, err)
	defer ready.Body.Close()
	assert.Equal(t, http.StatusOK, ready.StatusCode)

	live, err := s.server.Client().Get(s.server.URL + "/health/live")
	require.NoError(t, err)
	defer live.Body.Close()
	assert.Equal(t, http.StatusOK, live.StatusCode)
}

func mustBatches(t *testing.T, s *apiStack, productID uuid.UUID) []domain.Batch {
	t.Helper()
	batches, err := s.store.GetBatchesForProduct(context.Background(), productID)
	require.NoError(t, err)
	return batches
}
