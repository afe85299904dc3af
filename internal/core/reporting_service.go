package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// historyPageSize is the fixed page size for bill history search.
const historyPageSize = 10

// ── Report types ──────────────────────────────────────────────────────────────

// BillHistoryResult is one page of the bill history search.
type BillHistoryResult struct {
	Bills     []Bill `json:"bills"`
	TotalRows int    `json:"totalRows"`
	TotalPage int    `json:"totalPage"`
	Page      int    `json:"page"`
}

// MonthlySummary is one dashboard row: income and expenses for a calendar
// month (YYYY-MM) and the resulting net.
type MonthlySummary struct {
	Month   string          `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// DashboardReport is the income/expense dashboard: per-month rows plus
// all-time totals.
type DashboardReport struct {
	Monthly      []MonthlySummary `json:"monthly"`
	TotalIncome  decimal.Decimal  `json:"total_income"`
	TotalExpense decimal.Decimal  `json:"total_expense"`
	TotalNet     decimal.Decimal  `json:"total_net"`
}

// TopSellingStock is one entry of the best-seller report: a stock batch
// with its cumulative confirmed sale quantity.
type TopSellingStock struct {
	StockID       int             `json:"stock_id"`
	DrugName      string          `json:"drug_name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalQuantity int             `json:"total_quantity"`
}

// ── Interface ─────────────────────────────────────────────────────────────────

// ReportingService provides read-only views over both stores. Cross-store
// correlation is done application-side: ids from the billing store, details
// from the inventory store by id-set, merged in memory.
type ReportingService interface {
	// BillHistory returns one page of bills whose id or creation timestamp
	// contains searchQuery, case-insensitively. Empty query matches all.
	BillHistory(ctx context.Context, page int, searchQuery string) (*BillHistoryResult, error)

	// BillDetail returns a bill with its items, drug names resolved.
	BillDetail(ctx context.Context, billID int) (*Bill, error)

	// Dashboard returns monthly income/expense/net rows plus all-time totals.
	Dashboard(ctx context.Context) (*DashboardReport, error)

	// TopSelling returns the five stocks with the highest cumulative
	// confirmed sale quantity.
	TopSelling(ctx context.Context) ([]TopSellingStock, error)
}

type reportingService struct {
	billing *pgxpool.Pool
	stock   StockService
}

// NewReportingService constructs a ReportingService over the billing store
// pool and the Stock Ledger.
func NewReportingService(billing *pgxpool.Pool, stock StockService) ReportingService {
	return &reportingService{billing: billing, stock: stock}
}

// ── BillHistory ───────────────────────────────────────────────────────────────

func (s *reportingService) BillHistory(ctx context.Context, page int, searchQuery string) (*BillHistoryResult, error) {
	if page < 1 {
		page = 1
	}

	where := ""
	args := []any{}
	if searchQuery != "" {
		args = append(args, "%"+searchQuery+"%")
		where = ` WHERE CAST(id AS TEXT) ILIKE $1
		          OR TO_CHAR(created_at, 'YYYY-MM-DD HH24:MI:SS') ILIKE $1`
	}

	var totalRows int
	if err := s.billing.QueryRow(ctx, "SELECT COUNT(*) FROM bills"+where, args...).Scan(&totalRows); err != nil {
		return nil, fmt.Errorf("failed to count bills: %w", err)
	}

	totalPage := (totalRows + historyPageSize - 1) / historyPageSize

	q := fmt.Sprintf(`
		SELECT id, customer_name, discount, total_amount, created_at
		FROM bills%s
		ORDER BY id DESC
		LIMIT %d OFFSET %d
	`, where, historyPageSize, (page-1)*historyPageSize)

	rows, err := s.billing.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bill history: %w", err)
	}
	defer rows.Close()

	var bills []Bill
	for rows.Next() {
		var b Bill
		if err := rows.Scan(&b.ID, &b.CustomerName, &b.Discount, &b.TotalAmount, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bills: %w", err)
	}

	return &BillHistoryResult{
		Bills:     bills,
		TotalRows: totalRows,
		TotalPage: totalPage,
		Page:      page,
	}, nil
}

// ── BillDetail ────────────────────────────────────────────────────────────────

func (s *reportingService) BillDetail(ctx context.Context, billID int) (*Bill, error) {
	var b Bill
	err := s.billing.QueryRow(ctx, `
		SELECT id, customer_name, discount, total_amount, created_at
		FROM bills WHERE id = $1
	`, billID).Scan(&b.ID, &b.CustomerName, &b.Discount, &b.TotalAmount, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrBillNotFound, billID)
		}
		return nil, fmt.Errorf("failed to fetch bill %d: %w", billID, err)
	}

	rows, err := s.billing.Query(ctx, `
		SELECT id, bill_id, stock_id, service, custom_price, quantity, subtotal, status, created_at
		FROM bill_items
		WHERE bill_id = $1
		ORDER BY id
	`, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bill items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item BillItem
		if err := rows.Scan(&item.ID, &item.BillID, &item.StockID, &item.Service,
			&item.CustomPrice, &item.Quantity, &item.Subtotal, &item.Status, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bill item: %w", err)
		}
		b.Items = append(b.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bill items: %w", err)
	}

	stocks, err := s.stock.GetStocksByIDs(ctx, CollectStockIDs(b.Items))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve stock details: %w", err)
	}
	ResolveItemNames(b.Items, stocks)
	return &b, nil
}

// ── Dashboard ─────────────────────────────────────────────────────────────────

func (s *reportingService) Dashboard(ctx context.Context) (*DashboardReport, error) {
	income, err := s.monthlyTotals(ctx, "SELECT TO_CHAR(created_at, 'YYYY-MM'), SUM(total_amount) FROM bills GROUP BY 1")
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate income: %w", err)
	}
	expense, err := s.monthlyTotals(ctx, "SELECT TO_CHAR(created_at, 'YYYY-MM'), SUM(amount) FROM expenses GROUP BY 1")
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate expenses: %w", err)
	}

	// Merge the two month-keyed maps; a month appears if either side has data.
	months := make([]string, 0, len(income)+len(expense))
	seen := map[string]struct{}{}
	for m := range income {
		months = append(months, m)
		seen[m] = struct{}{}
	}
	for m := range expense {
		if _, ok := seen[m]; !ok {
			months = append(months, m)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))

	report := &DashboardReport{}
	for _, m := range months {
		in := income[m]
		ex := expense[m]
		report.Monthly = append(report.Monthly, MonthlySummary{
			Month:   m,
			Income:  in,
			Expense: ex,
			Net:     in.Sub(ex),
		})
		report.TotalIncome = report.TotalIncome.Add(in)
		report.TotalExpense = report.TotalExpense.Add(ex)
	}
	report.TotalNet = report.TotalIncome.Sub(report.TotalExpense)
	return report, nil
}

func (s *reportingService) monthlyTotals(ctx context.Context, query string) (map[string]decimal.Decimal, error) {
	rows, err := s.billing.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := map[string]decimal.Decimal{}
	for rows.Next() {
		var month string
		var sum decimal.Decimal
		if err := rows.Scan(&month, &sum); err != nil {
			return nil, err
		}
		totals[month] = sum
	}
	return totals, rows.Err()
}

// ── TopSelling ────────────────────────────────────────────────────────────────

func (s *reportingService) TopSelling(ctx context.Context) ([]TopSellingStock, error) {
	rows, err := s.billing.Query(ctx, `
		SELECT stock_id, SUM(quantity) AS sold
		FROM bill_items
		WHERE status = 'confirmed' AND stock_id IS NOT NULL
		GROUP BY stock_id
		ORDER BY sold DESC, stock_id
		LIMIT 5
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query top sellers: %w", err)
	}
	defer rows.Close()

	type sold struct {
		stockID  int
		quantity int
	}
	var ranked []sold
	for rows.Next() {
		var r sold
		if err := rows.Scan(&r.stockID, &r.quantity); err != nil {
			return nil, fmt.Errorf("failed to scan top seller: %w", err)
		}
		ranked = append(ranked, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating top sellers: %w", err)
	}
	if len(ranked) == 0 {
		return nil, nil
	}

	ids := make([]int, len(ranked))
	for i, r := range ranked {
		ids[i] = r.stockID
	}
	stocks, err := s.stock.GetStocksByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve stock details: %w", err)
	}

	// Zip billing-store ranks with inventory-store details, keeping rank order.
	out := make([]TopSellingStock, 0, len(ranked))
	for _, r := range ranked {
		entry := TopSellingStock{StockID: r.stockID, TotalQuantity: r.quantity}
		if st, ok := stocks[r.stockID]; ok {
			entry.DrugName = st.DrugName
			entry.UnitPrice = st.UnitPrice
		}
		out = append(out, entry)
	}
	return out, nil
}
