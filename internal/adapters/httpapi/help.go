package httpapi

import (
	"net/http"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"github.com/gin-gonic/gin"
)

type HelpResponse struct {
	Commands   []HelpCommand     `json:"commands"`
	Categories []domain.Category `json:"categories"`
}

type HelpCommand struct {
	Command string `json:"command"`
	Example string `json:"example"`
}

var commands = []HelpCommand{
	{"expense", "45 Rewe"},
	{"expense with currency", "5 DM shampoo"},
	{"expense photo", "a receipt photo, optionally captioned"},
	{"/undo", "deletes your last expense"},
	{"/edit", "/edit amount 12,50"},
	{"/recent", "/recent 5"},
	{"/goal", "/goal Trip to Japan 5000 by December 2026"},
	{"/goals", "lists all goals"},
	{"/editgoal", "/editgoal G1A2B3C4D amount 5000"},
	{"/status", "/status G1A2B3C4D done"},
	{"/undogoal", "deletes your last goal, or /undogoal G1A2B3C4D"},
}

func GetHelp(c *gin.Context) {
	c.JSON(http.StatusOK, HelpResponse{Commands: commands, Categories: domain.Categories})
}
