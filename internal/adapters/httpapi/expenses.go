package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"github.com/gin-gonic/gin"
)

type SubmitRequest struct {
	Text string `json:"text" example:"12,50 pizza"`
}

type EditRequest struct {
	Field string `json:"field" binding:"required" example:"amount"`
	Value string `json:"value" example:"5000"`
}

type ExpenseResponse struct {
	Data domain.Expense `json:"data"`
}

type ExpenseListResponse struct {
	Data []domain.Expense `json:"data"`
}

func (co Controller) RegisterExpenseRoutes(r *gin.RouterGroup) {
	r.POST("", co.CreateExpense)
	r.GET("/recent", co.GetRecentExpenses)
	r.DELETE("/last", co.UndoLastExpense)
	r.PATCH("/:position", co.UpdateExpense)
}

// CreateExpense accepts JSON text or a multipart form with a photo and an
// optional caption.
func (co Controller) CreateExpense(c *gin.Context) {
	payload, err := co.payload(c)
	if err != nil {
		Handler(c, err)
		return
	}

	e, err := co.engine.SubmitExpense(c.Request.Context(), actor(c), payload)
	if err != nil {
		Handler(c, err)
		return
	}
	c.JSON(http.StatusCreated, ExpenseResponse{Data: e})
}

// GetRecentExpenses lists the caller's newest expenses. all=true lists
// everybody's.
func (co Controller) GetRecentExpenses(c *gin.Context) {
	n, err := strconv.Atoi(c.DefaultQuery("n", "5"))
	if err != nil || n <= 0 || n > 100 {
		Handler(c, fmt.Errorf("%w: n must be between 1 and 100", domain.ErrInvalidPayload))
		return
	}
	who := actor(c)
	if c.Query("all") == "true" {
		who = ""
	}

	list, err := co.engine.RecentExpenses(c.Request.Context(), who, n)
	if err != nil {
		Handler(c, err)
		return
	}
	c.JSON(http.StatusOK, ExpenseListResponse{Data: list})
}

func (co Controller) UndoLastExpense(c *gin.Context) {
	e, err := co.engine.UndoLastExpense(c.Request.Context(), actor(c))
	if err != nil {
		Handler(c, err)
		return
	}
	c.JSON(http.StatusOK, ExpenseResponse{Data: e})
}

// UpdateExpense edits one field. The position "last" selects the caller's
// most recent expense.
func (co Controller) UpdateExpense(c *gin.Context) {
	position := 0
	if p := c.Param("position"); p != "last" {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			Handler(c, fmt.Errorf("%w: position must be a row number or last", domain.ErrInvalidPayload))
			return
		}
		position = n
	}

	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Handler(c, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err))
		return
	}

	e, err := co.engine.EditExpense(c.Request.Context(), actor(c), position, req.Field, req.Value)
	if err != nil {
		Handler(c, err)
		return
	}
	c.JSON(http.StatusOK, ExpenseResponse{Data: e})
}

// payload reads the message body: JSON {"text"} or multipart "photo" plus
// "text".
func (co Controller) payload(c *gin.Context) (domain.Payload, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, co.maxUpload+1<<20)

		p := domain.Payload{Text: c.PostForm("text")}
		fh, err := c.FormFile("photo")
		if errors.Is(err, http.ErrMissingFile) {
			return p, nil
		}
		if err != nil {
			return p, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
		if fh.Size > co.maxUpload {
			return p, fmt.Errorf("%w: photo has %d bytes, limit is %d", domain.ErrInvalidPayload, fh.Size, co.maxUpload)
		}

		f, err := fh.Open()
		if err != nil {
			return p, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
		defer f.Close()
		if p.Image, err = io.ReadAll(io.LimitReader(f, co.maxUpload+1)); err != nil {
			return p, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
		return p, nil
	}

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return domain.Payload{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return domain.Payload{Text: req.Text}, nil
}
