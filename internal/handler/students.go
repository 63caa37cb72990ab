package handler

import (
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/attendance"
)

const maxPhotoBytes = 5 << 20

type studentRequest struct {
	Name                string                `json:"name"`
	Grade               int                   `json:"grade"`
	PhotoURL            string                `json:"photo_url"`
	Notes               string                `json:"notes"`
	AuthorizedGuardians []attendance.Guardian `json:"authorized_guardians"`
}

func (r studentRequest) student() attendance.Student {
	return attendance.Student{
		Name:                r.Name,
		Grade:               r.Grade,
		PhotoURL:            r.PhotoURL,
		Notes:               r.Notes,
		AuthorizedGuardians: r.AuthorizedGuardians,
	}
}

func (h *Handler) listStudents(c *gin.Context) {
	students, err := h.Service.Students(c.Request.Context(), user(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if q := strings.ToLower(strings.TrimSpace(c.Query("q"))); q != "" {
		filtered := students[:0]
		for _, s := range students {
			if strings.Contains(strings.ToLower(s.Name), q) || strings.Contains(strings.ToLower(s.ID), q) {
				filtered = append(filtered, s)
			}
		}
		students = filtered
	}
	c.JSON(http.StatusOK, gin.H{"students": nonNil(students)})
}

func (h *Handler) getStudent(c *gin.Context) {
	st, err := h.Service.Student(c.Request.Context(), user(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) createStudent(c *gin.Context) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	st, err := h.Service.CreateStudent(c.Request.Context(), user(c), req.student())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (h *Handler) updateStudent(c *gin.Context) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	st, err := h.Service.UpdateStudent(c.Request.Context(), user(c), c.Param("id"), req.student())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) deleteStudent(c *gin.Context) {
	if err := h.Service.DeleteStudent(c.Request.Context(), user(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) studentHistory(c *gin.Context) {
	st, entries, err := h.Service.History(c.Request.Context(), user(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": st, "history": nonNil(entries)})
}

// uploadPhoto accepts a multipart "file" field or a JSON {"data": "<data URL>"}.
func (h *Handler) uploadPhoto(c *gin.Context) {
	if h.Photos == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
		return
	}
	ctx := c.Request.Context()
	u := user(c)
	st, err := h.Service.Student(ctx, u, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	publicID := "student-" + strings.ToLower(st.ID)

	var url string
	if strings.Contains(c.ContentType(), "multipart/form-data") {
		file, header, ferr := c.Request.FormFile("file")
		if ferr != nil {
			badRequest(c, "file field required")
			return
		}
		defer file.Close()
		data, ferr := io.ReadAll(io.LimitReader(file, maxPhotoBytes+1))
		if ferr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read file failed"})
			return
		}
		if len(data) > maxPhotoBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "photo too large"})
			return
		}
		res, uerr := h.Photos.UploadBytes(ctx, data, header.Filename, publicID)
		if uerr != nil {
			err = uerr
		} else {
			url = res.SecureURL
		}
	} else {
		var body struct {
			Data string `json:"data" binding:"required"`
		}
		if berr := c.ShouldBindJSON(&body); berr != nil {
			badRequest(c, `provide {"data": "<base64 data URL>"}`)
			return
		}
		res, uerr := h.Photos.UploadDataURL(ctx, body.Data, publicID)
		if uerr != nil {
			err = uerr
		} else {
			url = res.SecureURL
		}
	}
	if err != nil {
		log.Printf("photo upload for %s failed: %v", st.ID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
		return
	}

	st, err = h.Service.SetStudentPhoto(ctx, u, st.ID, url)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
