package httpapi

import (
	"fmt"
	"net/http"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"github.com/gin-gonic/gin"
)

type StatusRequest struct {
	Status string `json:"status" binding:"required" example:"In Progress"`
}

type GoalResponse struct {
	Data domain.Goal `json:"data"`
}

type GoalListResponse struct {
	Data []domain.Goal `json:"data"`
}

func (co Controller) RegisterGoalRoutes(r *gin.RouterGroup) {
	r.POST("", co.CreateGoal)
	r.GET("", co.GetGoals)
	r.DELETE("/last", co.UndoLastGoal)
	r.PATCH("/:id", co.UpdateGoal)
	r.PUT("/:id/status", co.UpdateGoalStatus)
	r.DELETE("/:id", co.DeleteGoal)
}

func (co Controller) CreateGoal(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Handler(c, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err))
		return
	}

	g, err := co.engine.SubmitGoal(c.Request.Context(), actor(c), domain.Payload{Text: req.Text})
	if err != nil {
		Handler(c, err)
		return
	}
	c.JSON(http.StatusCreated, GoalResponse{Data: g})
}

func (co Controller) GetGoals(c *gin.Context) {
	goals, err := co.engine.ListGoals(c.Request.Context())
	if err != nil {
		Handler(c, err)
		return
	}
	c.JSON(http.StatusOK, GoalListResponse{Data: goals})
}

func (co Controller) UpdateGoal(c *gin.Context) {
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Handler(c, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err))
		return
	}

	g, err := co.engine.EditGoal(c.Request.Context(), c.Param("id"), req.Field, req.Value)
	if err != nil {
		Handler(c, err)
		return
	}
	c.JSON(http.StatusOK, GoalResponse{Data: g})
}

func (co Controller) UpdateGoalStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Handler(c, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err))
		return
	}

	g, err := co.engine.ChangeGoalStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		Handler(c, err)
		return
	}
	c.JSON(http.StatusOK, GoalResponse{Data: g})
}

func (co Controller) UndoLastGoal(c *gin.Context) {
	g, err := co.engine.UndoLastGoal(c.Request.Context(), actor(c))
	if err != nil {
		Handler(c, err)
		return
	}
	c.JSON(http.StatusOK, GoalResponse{Data: g})
}

func (co Controller) DeleteGoal(c *gin.Context) {
	g, err := co.engine.DeleteGoal(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		Handler(c, err)
		return
	}
	c.JSON(http.StatusOK, GoalResponse{Data: g})
}
