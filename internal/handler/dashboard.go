package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portal/internal/account"
)

type createUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,strongpassword"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role" binding:"required,oneof=admin secretary student"`
	Phone    string `json:"phone"`
	Stage    string `json:"stage"`
	Subject  string `json:"subject"`
}

type addStudentRequest struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone" binding:"required"`
	Stage   string `json:"stage"`
	Subject string `json:"subject"`
}

type pointsRequest struct {
	Points int `json:"points" binding:"required,min=1,max=100000"`
}

type gradeRequest struct {
	Grade string `json:"grade" binding:"required"`
	Note  string `json:"note"`
}

type fileRequest struct {
	Title string `json:"title" binding:"required"`
	URL   string `json:"url" binding:"required,url"`
	Type  string `json:"type" binding:"omitempty,oneof=note homework"`
}

type quizRequest struct {
	Title string `json:"title" binding:"required"`
	Link  string `json:"link" binding:"required,url"`
}

type attendanceRequest struct {
	Date string `json:"date" binding:"required"`
	Note string `json:"note"`
}

type homeworkRequest struct {
	Title    string `json:"title"`
	FileName string `json:"fileName" binding:"required"`
	FileURL  string `json:"fileUrl" binding:"required,url"`
}

func (h *Handler) createUser(c *gin.Context) {
	var req createUserRequest
	if !bind(c, &req) {
		return
	}
	reg, err := h.Registrar.CreateByAdmin(c.Request.Context(), account.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
		Phone:    req.Phone,
		Stage:    req.Stage,
		Subject:  req.Subject,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, reg)
}

func (h *Handler) addStudent(c *gin.Context) {
	var req addStudentRequest
	if !bind(c, &req) {
		return
	}
	reg, err := h.Registrar.AddStudent(c.Request.Context(), actor(c).UID, account.RegisterInput{
		Name:    req.Name,
		Phone:   req.Phone,
		Stage:   req.Stage,
		Subject: req.Subject,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, reg)
}

func (h *Handler) activate(c *gin.Context) {
	h.done(c, h.Dashboard.Activate(c.Request.Context(), actor(c), c.Param("id")))
}

func (h *Handler) deleteUser(c *gin.Context) {
	h.done(c, h.Dashboard.Delete(c.Request.Context(), actor(c), c.Param("id")))
}

func (h *Handler) promote(c *gin.Context) {
	h.done(c, h.Dashboard.Promote(c.Request.Context(), actor(c), c.Param("id")))
}

func (h *Handler) togglePermission(c *gin.Context) {
	v, err := h.Dashboard.ToggleAttendancePermission(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"canApproveAttendance": v})
}

func (h *Handler) awardPoints(c *gin.Context) {
	var req pointsRequest
	if !bind(c, &req) {
		return
	}
	total, err := h.Dashboard.AwardPoints(c.Request.Context(), actor(c), c.Param("id"), req.Points)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": total})
}

func (h *Handler) gradeHomework(c *gin.Context) {
	var req gradeRequest
	if !bind(c, &req) {
		return
	}
	h.done(c, h.Dashboard.GradeHomework(c.Request.Context(), actor(c), c.Param("id"), req.Grade, req.Note))
}

func (h *Handler) publishFile(c *gin.Context) {
	var req fileRequest
	if !bind(c, &req) {
		return
	}
	f, err := h.Dashboard.PublishFile(c.Request.Context(), actor(c), req.Title, req.URL, req.Type)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (h *Handler) publishQuiz(c *gin.Context) {
	var req quizRequest
	if !bind(c, &req) {
		return
	}
	q, err := h.Dashboard.PublishQuiz(c.Request.Context(), actor(c), req.Title, req.Link)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

func (h *Handler) approveAttendance(c *gin.Context) {
	h.done(c, h.Dashboard.ApproveAttendance(c.Request.Context(), actor(c), c.Param("id")))
}

func (h *Handler) requestAttendance(c *gin.Context) {
	var req attendanceRequest
	if !bind(c, &req) {
		return
	}
	r, err := h.Dashboard.RequestAttendance(c.Request.Context(), actor(c), req.Date, req.Note)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *Handler) submitHomework(c *gin.Context) {
	var req homeworkRequest
	if !bind(c, &req) {
		return
	}
	hw, err := h.Dashboard.SubmitHomework(c.Request.Context(), actor(c), req.Title, req.FileName, req.FileURL)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, hw)
}

func (h *Handler) query(c *gin.Context) {
	data, err := h.Queries.Run(c.Request.Context(), c.Param("name"), actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": c.Param("name"), "data": data})
}

func (h *Handler) done(c *gin.Context, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
