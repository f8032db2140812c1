package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
)

const expensePrompt = `Current Date: %s
Categories: %s.
Task: Parse the input (text or receipt image) into one JSON object:
{"amount":string,"currency":string,"merchant":string,"category":string,"date":string,"note":string}

CRITICAL RULES:
1. amount is the total paid, copied as written. Do not convert currencies.
2. currency is the symbol or code exactly as written ("€", "$", "DM", "CHF"), or "" when none is given.
3. "DM" may be the shop dm-drogerie markt or Deutsche Mark. Copy it into currency and never decide which.
4. category is one of the categories above, or "" when unsure.
5. date is the purchase date phrase as written ("yesterday", "2025-03-01"), or "".
6. If there is no amount, return {"amount":""}.
7. Output JSON only.`

const goalPrompt = `Current Date: %s
Task: Parse the goal declaration into one JSON object:
{"name":string,"type":string,"target_amount":string,"currency":string,"target_date":string,"note":string}

CRITICAL RULES:
1. name is a short title of the goal without amount or date.
2. type is "Financial" when there is a money target, else "Task".
3. target_amount is copied as written, or "" when there is none. Do not convert currencies.
4. target_date is the deadline phrase as written ("December 2026", "next summer"), or "".
5. If the input declares no goal, return {"name":""}.
6. Output JSON only.`

func systemPrompt(kind domain.Kind, ref time.Time) string {
	date := ref.Format("2006-01-02")
	if kind == domain.KindGoal {
		return fmt.Sprintf(goalPrompt, date)
	}

	names := make([]string, len(domain.Categories))
	for i, c := range domain.Categories {
		names[i] = string(c)
	}
	return fmt.Sprintf(expensePrompt, date, strings.Join(names, ", "))
}
