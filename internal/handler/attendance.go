package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/attendance"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/audit"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) recordAttendance(c *gin.Context) {
	var req struct {
		StudentID    string `json:"student_id"`
		GuardianName string `json:"guardian_name"`
		Action       string `json:"action"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	entry, err := h.Service.Record(c.Request.Context(), user(c), attendance.Event{
		StudentID:    req.StudentID,
		GuardianName: req.GuardianName,
		Action:       attendance.Action(strings.ToLower(strings.TrimSpace(req.Action))),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) dashboard(c *gin.Context) {
	start, end, ok := h.dateRange(c)
	if !ok {
		return
	}
	d, err := h.Service.Dashboard(c.Request.Context(), user(c), start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) todayByStatus(c *gin.Context) {
	status, err := attendance.ParseStatus(c.Param("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	students, err := h.Service.TodayByStatus(c.Request.Context(), user(c), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "students": nonNil(students)})
}

func (h *Handler) lateArrivals(c *gin.Context) {
	students, err := h.Service.LateArrivals(c.Request.Context(), user(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": nonNil(students)})
}

func (h *Handler) records(c *gin.Context) {
	start, end, ok := h.dateRange(c)
	if !ok {
		return
	}
	key, err := attendance.ParseSortKey(c.Query("sort"))
	if err != nil {
		respondError(c, err)
		return
	}
	entries, err := h.Service.Records(c.Request.Context(), user(c), attendance.RecordQuery{
		Start:  start,
		End:    end,
		Search: c.Query("q"),
		Sort:   key,
		Desc:   strings.EqualFold(c.Query("dir"), "desc"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": nonNil(entries), "count": len(entries)})
}

func (h *Handler) absenteeism(c *gin.Context) {
	day, ok := h.parseDay(c, "date", attendance.Day(h.Service.Now()))
	if !ok {
		return
	}
	u := user(c)
	students, err := h.Service.Absenteeism(c.Request.Context(), u, day)
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit(c, u, audit.ActionReport, fmt.Sprintf("Generated daily absenteeism report for %s.", day.Format(time.DateOnly)))
	c.JSON(http.StatusOK, gin.H{"date": day.Format(time.DateOnly), "students": nonNil(students)})
}

func (h *Handler) perfectAttendance(c *gin.Context) {
	month := strings.TrimSpace(c.Query("month"))
	first := attendance.Day(h.Service.Now())
	if month != "" {
		t, err := time.ParseInLocation("2006-01", month, h.Service.Location())
		if err != nil {
			badRequest(c, "month must be YYYY-MM")
			return
		}
		first = t
	}
	u := user(c)
	students, err := h.Service.PerfectAttendance(c.Request.Context(), u, first.Year(), first.Month())
	if err != nil {
		respondError(c, err)
		return
	}
	label := first.Format("2006-01")
	h.audit(c, u, audit.ActionReport, "Generated monthly perfect attendance report for "+label+".")
	c.JSON(http.StatusOK, gin.H{"month": label, "students": nonNil(students)})
}

func (h *Handler) exportCSV(c *gin.Context) {
	h.export(c, "csv", "text/csv; charset=utf-8", export.CSV)
}

func (h *Handler) exportXLSX(c *gin.Context) {
	h.export(c, "xlsx", xlsxContentType, export.XLSX)
}

func (h *Handler) export(c *gin.Context, ext, contentType string, write func(w io.Writer, entries []attendance.Entry) error) {
	start, end, ok := h.dateRange(c)
	if !ok {
		return
	}
	u := user(c)
	entries, err := h.Service.Export(c.Request.Context(), u, start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	if len(entries) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no data to export"})
		return
	}
	var buf bytes.Buffer
	if err := write(&buf, entries); err != nil {
		respondError(c, err)
		return
	}
	name := export.Filename(start, end, ext)
	h.audit(c, u, audit.ActionReport, fmt.Sprintf("Exported %d attendance records to %s.", len(entries), name))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
