// Package api exposes the import, reconciliation and reporting operations over HTTP.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/conciliar-dev/conciliar/internal/auditlog"
	"github.com/conciliar-dev/conciliar/internal/buildinfo"
	"github.com/conciliar-dev/conciliar/internal/model"
	"github.com/conciliar-dev/conciliar/internal/pipeline"
	"github.com/conciliar-dev/conciliar/internal/reconcile"
	"github.com/conciliar-dev/conciliar/internal/report"
	"github.com/conciliar-dev/conciliar/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Deps are the services behind the HTTP handlers.
type Deps struct {
	Pipeline       *pipeline.Pipeline
	Engine         *reconcile.Engine
	Reports        *report.Aggregator
	Banks          []string
	Health         func(ctx context.Context) error
	Logger         *slog.Logger
	MaxUploadBytes int
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	deps Deps
	log  *slog.Logger
}

// New builds the fiber app with every route registered.
func New(deps Deps) *fiber.App {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	cfg := fiber.Config{
		AppName:               "conciliar",
		ErrorHandler:          errorHandler(log),
		DisableStartupMessage: true,
	}
	if deps.MaxUploadBytes > 0 {
		// multipart framing on top of the file itself
		cfg.BodyLimit = deps.MaxUploadBytes + 64<<10
	}
	app := fiber.New(cfg)
	h := &Handler{deps: deps, log: log}
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/health", h.handleHealth)
	api.Get("/banks", h.handleBanks)
	api.Post("/imports", h.handleUpload)
	api.Post("/imports/commit", h.handleCommit)
	api.Get("/transactions", h.handleTransactions)
	api.Get("/transactions/:id", h.handleTransaction)
	api.Post("/transactions/:id/reconcile", h.handleReconcile)
	api.Get("/transactions/:id/audit", h.handleAudit)
	api.Get("/reports", h.handleReport)
}

func (h *Handler) handleHealth(c *fiber.Ctx) error {
	if h.deps.Health != nil {
		if err := h.deps.Health(c.UserContext()); err != nil {
			h.log.Error("health check failed", "err", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
	}
	return c.JSON(fiber.Map{"status": "ok", "version": buildinfo.Version})
}

func (h *Handler) handleBanks(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"banks": h.deps.Banks})
}

func (h *Handler) handleUpload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return &model.ValidationError{Field: "file", Reason: "no file uploaded, use form field 'file'"}
	}
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("reading upload: %w", err)
	}

	b, err := h.deps.Pipeline.Stage(c.UserContext(), pipeline.Upload{
		Name:    fh.Filename,
		Data:    data,
		Bank:    c.FormValue("bank"),
		Company: strings.TrimSpace(c.FormValue("company")),
		Account: strings.TrimSpace(c.FormValue("account")),
	})
	if err != nil {
		var rejected *model.ImportRejectedError
		if errors.As(err, &rejected) && b != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: err.Error(), Batch: b})
		}
		return err
	}
	return c.JSON(b)
}

// CommitRequest is the body of POST /api/imports/commit.
type CommitRequest struct {
	Batch            *model.ImportBatch `json:"batch"`
	Confirm          bool               `json:"confirm"`
	Override         bool               `json:"override"`
	AcceptDuplicates []int              `json:"accept_duplicates"`
	Actor            string             `json:"actor"`
}

func (h *Handler) handleCommit(c *fiber.Ctx) error {
	var req CommitRequest
	if err := c.BodyParser(&req); err != nil {
		return &model.ValidationError{Field: "body", Reason: err.Error()}
	}
	res, err := h.deps.Pipeline.Commit(c.UserContext(), req.Batch, pipeline.CommitOptions{
		Confirm:          req.Confirm,
		Override:         req.Override,
		AcceptDuplicates: req.AcceptDuplicates,
		Actor:            strings.TrimSpace(req.Actor),
	})
	if err != nil {
		return err
	}
	status := fiber.StatusCreated
	if res.Replayed {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(res)
}

// defaultListLimit caps GET /api/transactions when no limit is given.
const defaultListLimit = 200

// handleTransactions lists committed transactions, newest first. Only
// unreconciled ones are returned unless all=true.
func (h *Handler) handleTransactions(c *fiber.Ctx) error {
	f := store.TransactionFilter{
		Company:          strings.TrimSpace(c.Query("company")),
		Account:          strings.TrimSpace(c.Query("account")),
		Bank:             strings.ToUpper(strings.TrimSpace(c.Query("bank"))),
		Client:           strings.TrimSpace(c.Query("client")),
		Process:          strings.TrimSpace(c.Query("process")),
		UnreconciledOnly: !c.QueryBool("all"),
		Limit:            defaultListLimit,
	}
	var err error
	if f.From, err = queryDate(c, "from"); err != nil {
		return err
	}
	if f.To, err = queryDate(c, "to"); err != nil {
		return err
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return &model.ValidationError{Field: "limit", Reason: "must be a positive integer"}
		}
		f.Limit = n
	}

	txs, err := h.deps.Engine.List(c.UserContext(), f)
	if err != nil {
		return err
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	return c.JSON(txs)
}

func queryDate(c *fiber.Ctx, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(model.DateLayout, raw)
	if err != nil {
		return time.Time{}, &model.ValidationError{Field: name, Reason: "must be YYYY-MM-DD"}
	}
	return t, nil
}

func (h *Handler) handleTransaction(c *fiber.Ctx) error {
	id, err := transactionID(c)
	if err != nil {
		return err
	}
	tx, err := h.deps.Engine.Transaction(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(tx)
}

func (h *Handler) handleReconcile(c *fiber.Ctx) error {
	id, err := transactionID(c)
	if err != nil {
		return err
	}
	var req reconcile.Request
	if err := c.BodyParser(&req); err != nil {
		return &model.ValidationError{Field: "body", Reason: err.Error()}
	}
	req.TransactionID = id
	tx, err := h.deps.Engine.Reconcile(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(tx)
}

func (h *Handler) handleAudit(c *fiber.Ctx) error {
	id, err := transactionID(c)
	if err != nil {
		return err
	}
	entries, err := h.deps.Engine.History(c.UserContext(), id)
	if err != nil {
		return err
	}
	if c.Query("format") == "csv" {
		var buf bytes.Buffer
		if err := auditlog.WriteEntries(&buf, entries); err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		return c.Send(buf.Bytes())
	}
	if entries == nil {
		entries = []model.AuditEntry{}
	}
	return c.JSON(entries)
}

func (h *Handler) handleReport(c *fiber.Ctx) error {
	r, err := h.deps.Reports.Aggregate(c.UserContext(), c.Query("client"), c.Query("company"), c.Query("month"))
	if err != nil {
		return err
	}
	if c.Query("format") == "xlsx" {
		var buf bytes.Buffer
		if err := report.WriteXLSX(&buf, r); err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, xlsxContentType)
		c.Attachment(fmt.Sprintf("relatorio-%s.xlsx", r.Month))
		return c.Send(buf.Bytes())
	}
	return c.JSON(r)
}

func transactionID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &model.ValidationError{Field: "id", Reason: "must be a positive integer"}
	}
	return id, nil
}
