package handler

import (
	"time"

	"github.com/fieldops/backend/internal/application/settlement"
	"github.com/fieldops/backend/internal/domain/payroll"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const monthLayout = "2006-01"

// ReportHandler serves the read-only reports
type ReportHandler struct {
	BaseHandler
	stats          *settlement.StatsService
	bonus          *settlement.BonusService
	reconciliation *settlement.ReconciliationService
	now            func() time.Time
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(stats *settlement.StatsService, bonus *settlement.BonusService, reconciliation *settlement.ReconciliationService) *ReportHandler {
	return &ReportHandler{stats: stats, bonus: bonus, reconciliation: reconciliation, now: time.Now}
}

// BonusQuery selects the bonus month; omitted parameters use the calculator defaults
type BonusQuery struct {
	Month      string `form:"month"`
	MinDaily   string `form:"min_daily" binding:"omitempty,numeric"`
	Commission string `form:"commission" binding:"omitempty,numeric"`
}

func optionalDecimal(raw string) (*decimal.Decimal, bool) {
	if raw == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return nil, false
	}
	return &d, true
}

// ReconciliationReport is the body of GET /reports/reconciliation
type ReconciliationReport struct {
	Balanced      bool                     `json:"balanced"`
	Discrepancies []settlement.Discrepancy `json:"discrepancies"`
}

// InvoiceStats handles GET /reports/invoice-stats
func (h *ReportHandler) InvoiceStats(c *gin.Context) {
	var q DateRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	from, to, ok := q.parse()
	if !ok {
		h.BadRequest(c, "Invalid date range")
		return
	}
	stats, err := h.stats.GetInvoiceStats(c.Request.Context(), from, to)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// WorkerBonuses handles GET /reports/worker-bonuses?month=YYYY-MM
func (h *ReportHandler) WorkerBonuses(c *gin.Context) {
	var q BonusQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	month := h.now()
	if q.Month != "" {
		t, err := time.Parse(monthLayout, q.Month)
		if err != nil {
			h.BadRequest(c, "month must be formatted as YYYY-MM")
			return
		}
		month = t
	}
	minDaily, ok := optionalDecimal(q.MinDaily)
	if !ok {
		h.BadRequest(c, "min_daily must be a non-negative number")
		return
	}
	commission, ok := optionalDecimal(q.Commission)
	if !ok {
		h.BadRequest(c, "commission must be a non-negative number")
		return
	}
	rows, err := h.bonus.GetWorkerBonuses(c.Request.Context(), payroll.BonusQuery{
		Month:      month,
		MinDaily:   minDaily,
		Commission: commission,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if rows == nil {
		rows = []payroll.WorkerBonus{}
	}
	h.Success(c, rows)
}

// Reconciliation handles GET /reports/reconciliation
func (h *ReportHandler) Reconciliation(c *gin.Context) {
	found, err := h.reconciliation.Reconcile(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if found == nil {
		found = []settlement.Discrepancy{}
	}
	h.Success(c, ReconciliationReport{Balanced: len(found) == 0, Discrepancies: found})
}
