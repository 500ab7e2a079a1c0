// Package sheets appends audit rows to a Google spreadsheet.
package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// Appender writes one row of values to the audit sheet.
type Appender interface {
	AppendRow(ctx context.Context, values ...string) error
}

type googleAppender struct {
	svc           *gsheets.Service
	spreadsheetID string
	writeRange    string
}

// NewGoogleAppender authenticates with a service-account key file.
func NewGoogleAppender(ctx context.Context, credentialsFile, spreadsheetID, writeRange string) (Appender, error) {
	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	return &googleAppender{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		writeRange:    writeRange,
	}, nil
}

func (a *googleAppender) AppendRow(ctx context.Context, values ...string) error {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}

	_, err := a.svc.Spreadsheets.Values.
		Append(a.spreadsheetID, a.writeRange, &gsheets.ValueRange{Values: [][]interface{}{row}}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append row to sheet: %w", err)
	}
	return nil
}

// Noop is used when no spreadsheet is configured.
type Noop struct{}

func (Noop) AppendRow(context.Context, ...string) error { return nil }
