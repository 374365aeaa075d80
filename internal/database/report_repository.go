package database

import (
	"context"
	"fmt"

	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
)

// ReportRepository runs the read-only aggregate queries behind the dashboards
type ReportRepository struct {
	db DB
}

// NewReportRepository creates a new ReportRepository
func NewReportRepository(db DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// OwnerStallSummaries aggregates bookings, completed revenue and ratings per stall
func (r *ReportRepository) OwnerStallSummaries(ctx context.Context, ownerID uuid.UUID) ([]models.OwnerStallSummary, error) {
	query := `
		SELECT s.id AS stall_id, s.name AS stall_name, s.status, s.rent_per_day,
			COALESCE(bk.total_bookings, 0) AS total_bookings,
			COALESCE(bk.pending_requests, 0) AS pending_requests,
			COALESCE(pay.revenue, 0) AS revenue,
			fb.average_rating,
			COALESCE(fb.review_count, 0) AS review_count
		FROM stalls s
		LEFT JOIN (
			SELECT stall_id,
				COUNT(*) AS total_bookings,
				COUNT(*) FILTER (WHERE status = 'Pending') AS pending_requests
			FROM bookings GROUP BY stall_id
		) bk ON bk.stall_id = s.id
		LEFT JOIN (
			SELECT b.stall_id, SUM(p.amount) AS revenue
			FROM payments p JOIN bookings b ON b.id = p.booking_id
			WHERE p.status = 'Completed'
			GROUP BY b.stall_id
		) pay ON pay.stall_id = s.id
		LEFT JOIN (
			SELECT b.stall_id, AVG(f.rating)::float8 AS average_rating, COUNT(f.rating) AS review_count
			FROM feedback f JOIN bookings b ON b.id = f.booking_id
			GROUP BY b.stall_id
		) fb ON fb.stall_id = s.id
		WHERE s.owner_id = $1
		ORDER BY s.name
	`
	items := []models.OwnerStallSummary{}
	if err := r.db.SelectContext(ctx, &items, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to load stall summaries: %w", err)
	}
	return items, nil
}

// OwnerUpcoming returns approved bookings on the owner's stalls that end on or
// after today, earliest first. A non-positive limit returns everything.
func (r *ReportRepository) OwnerUpcoming(ctx context.Context, ownerID uuid.UUID, today string, limit int) ([]models.UpcomingEntry, error) {
	query := `
		SELECT b.id AS booking_id, s.id AS stall_id, s.name AS stall_name,
			u.full_name AS customer_name, b.start_date, b.end_date
		FROM bookings b
		JOIN stalls s ON s.id = b.stall_id
		JOIN users u ON u.id = b.customer_id
		WHERE s.owner_id = $1
		  AND b.status = 'Approved'
		  AND b.end_date >= $2::date
		ORDER BY b.start_date, b.created_at
	`
	args := []interface{}{ownerID, today}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	items := []models.UpcomingEntry{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load upcoming bookings: %w", err)
	}
	return items, nil
}

// EventRevenue sums completed payments on an event's slots
func (r *ReportRepository) EventRevenue(ctx context.Context, eventID uuid.UUID) (float64, error) {
	var revenue float64
	err := r.db.GetContext(ctx, &revenue, `
		SELECT COALESCE(SUM(p.amount), 0)
		FROM payments p
		JOIN bookings b ON b.id = p.booking_id
		JOIN stalls s ON s.id = b.stall_id
		WHERE s.event_id = $1 AND p.status = 'Completed'`, eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to load event revenue: %w", err)
	}
	return revenue, nil
}

// AdminDashboard loads the platform-wide counters in one round trip
func (r *ReportRepository) AdminDashboard(ctx context.Context) (*models.AdminDashboard, error) {
	var d models.AdminDashboard
	err := r.db.GetContext(ctx, &d, `
		SELECT
			(SELECT COUNT(*) FROM users) AS total_users,
			(SELECT COUNT(*) FROM stalls) AS total_stalls,
			(SELECT COUNT(*) FROM stalls WHERE status = 'Available') AS available_stalls,
			(SELECT COUNT(*) FROM stall_owner_applications WHERE status = 'Pending') AS pending_applications,
			(SELECT COUNT(*) FROM bookings WHERE status = 'Pending') AS pending_bookings,
			(SELECT COUNT(*) FROM payments WHERE status = 'Failed') AS failed_payments,
			(SELECT COUNT(*) FROM payments) AS total_payments,
			(SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = 'Completed') AS total_revenue`)
	if err != nil {
		return nil, fmt.Errorf("failed to load admin dashboard: %w", err)
	}
	d.TotalRevenue = models.RoundMoney(d.TotalRevenue)
	return &d, nil
}
