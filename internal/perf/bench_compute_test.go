package perf

import (
	"log/slog"
	"testing"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/payroll"
	_ "github.com/meridian-erp/meridian-erp/internal/testing/guard"
)

func BenchmarkComputePermanent(b *testing.B) {
	computer := payroll.NewComputer(slog.New(slog.DiscardHandler))
	salary := 5000.0
	emp := payroll.Employee{ID: 1, Name: "Bench Permanent", Category: "permanent", MonthlySalary: &salary, IsActive: true}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, ok := computer.Compute(emp, nil, time.June, 2026); !ok {
			b.Fatal("compute skipped permanent employee")
		}
	}
}

func BenchmarkComputeConsultantWithAssignments(b *testing.B) {
	computer := payroll.NewComputer(slog.New(slog.DiscardHandler))
	salary := 6600.0
	emp := payroll.Employee{ID: 2, Name: "Bench Consultant", Category: "consultant", MonthlySalary: &salary, IsActive: true}

	start := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.June, 30, 0, 0, 0, 0, time.UTC)
	assignments := make([]payroll.Assignment, 0, 8)
	for i := int64(1); i <= 8; i++ {
		assignments = append(assignments, payroll.Assignment{
			ID:            i,
			EmployeeID:    2,
			ProjectID:     i,
			ProjectStatus: "active",
			StartDate:     &start,
			EndDate:       &end,
		})
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, ok := computer.Compute(emp, assignments, time.June, 2026); !ok {
			b.Fatal("compute skipped consultant")
		}
	}
}
