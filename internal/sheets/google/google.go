// Package google implements the spreadsheet export port on the Google
// Sheets API.
package google

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"gastos/internal/sheets"
)

type Client struct {
	srv           *gsheets.Service
	spreadsheetID string
	sheetName     string
}

// NewClient builds a Sheets client from a service-account credentials
// file.
func NewClient(ctx context.Context, credentialsFile, spreadsheetID, sheetName string) (*Client, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet ID is required")
	}
	srv, err := gsheets.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{
		srv:           srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

var _ sheets.ReportWriter = (*Client)(nil)

// AppendPayment appends one payment row and returns the updated range
// as row reference.
func (c *Client) AppendPayment(ctx context.Context, row sheets.PaymentRow) (string, error) {
	values := &gsheets.ValueRange{
		Values: [][]any{{
			strconv.FormatInt(row.PaymentID, 10),
			row.ObligationName,
			row.Category,
			row.PeriodLabel,
			centsToUnits(row.AmountCents),
			row.PaymentDate,
			row.PaymentMethod,
		}},
	}

	resp, err := c.srv.Spreadsheets.Values.
		Append(c.spreadsheetID, c.sheetName+"!A:G", values).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("append payment row: %w", err)
	}

	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	slog.InfoContext(ctx, "Payment exported to spreadsheet",
		"payment_id", row.PaymentID,
		"range", ref)
	return ref, nil
}

// AppendSummary appends one monthly summary row to the summary sheet.
func (c *Client) AppendSummary(ctx context.Context, row sheets.SummaryRow) error {
	values := &gsheets.ValueRange{
		Values: [][]any{{
			fmt.Sprintf("%04d-%02d", row.Year, row.Month),
			centsToUnits(row.TotalIncomeCents),
			centsToUnits(row.GeneralExpensesCents),
			centsToUnits(row.FixedPaidCents),
			centsToUnits(row.NetBalanceCents),
			row.DuplicateCount,
		}},
	}

	_, err := c.srv.Spreadsheets.Values.
		Append(c.spreadsheetID, c.sheetName+"_resumen!A:F", values).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append summary row: %w", err)
	}

	slog.InfoContext(ctx, "Monthly summary exported",
		"year", row.Year,
		"month", row.Month)
	return nil
}

func centsToUnits(cents int64) float64 {
	return float64(cents) / 100.0
}
