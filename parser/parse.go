// Package parser loads the three scheduler inputs from CSV: the staff
// roster, the supplier request list, and the opportunity table. Lines
// starting with '#' are headers/comments. Excel workbook ingestion and
// column-name normalization live outside this module; these readers are
// the thin in-memory boundary the engine consumes.
package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"forum-scheduler/errors"
	"forum-scheduler/metrics"
	"forum-scheduler/models"
	"forum-scheduler/opportunity"
)

// ParseStaff reads the staff roster. Fields:
// Name, Region, Segment, District, Weight, Rotation(Y/N)
func ParseStaff(r io.Reader) ([]models.Staff, error) {
	var out []models.Staff
	err := readRecords(r, 6, func(line int, rec []string) error {
		weight, err := strconv.Atoi(strings.TrimSpace(rec[4]))
		if err != nil || weight < 1 {
			metrics.ParserErrorsTotal.WithLabelValues("invalid_weight").Inc()
			return &errors.ParseError{Line: line, Record: rec,
				Err: fmt.Errorf("%w: %v", errors.ErrInvalidWeight, rec[4])}
		}
		out = append(out, models.Staff{
			Name:     strings.TrimSpace(rec[0]),
			Region:   strings.TrimSpace(rec[1]),
			Segment:  strings.TrimSpace(rec[2]),
			District: strings.TrimSpace(rec[3]),
			Weight:   weight,
			Rotation: isYes(rec[5]),
		})
		metrics.ParserRecordsTotal.Inc()
		return nil
	})
	return out, err
}

// ParseRequests reads the supplier request list and groups rows into
// suppliers, preserving first-seen supplier order. Fields:
// Supplier, Tier, Booth, Seq, Session, Category, Value, Attendees
// where Attendees is a ';'-separated token list of literal staff names
// and territory codes.
func ParseRequests(r io.Reader) ([]*models.Supplier, error) {
	var order []*models.Supplier
	byName := make(map[string]*models.Supplier)

	err := readRecords(r, 8, func(line int, rec []string) error {
		name := strings.TrimSpace(rec[0])

		tier, err := models.ParseTier(rec[1])
		if err != nil {
			metrics.ParserErrorsTotal.WithLabelValues("unknown_tier").Inc()
			return &errors.ParseError{Line: line, Record: rec, Err: err}
		}
		seq, err := strconv.Atoi(strings.TrimSpace(rec[3]))
		if err != nil {
			metrics.ParserErrorsTotal.WithLabelValues("invalid_sequence").Inc()
			return &errors.ParseError{Line: line, Record: rec,
				Err: fmt.Errorf("%w: %v", errors.ErrInvalidSequence, err)}
		}
		// An unrecognized session type is fatal: it signals a broken
		// contract with the ingestion layer, not a scheduling conflict.
		session, err := models.ParseSessionType(rec[4])
		if err != nil {
			metrics.ParserErrorsTotal.WithLabelValues("unknown_session_type").Inc()
			return &errors.ParseError{Line: line, Record: rec, Err: err}
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(rec[6]), 64)
		if err != nil {
			metrics.ParserErrorsTotal.WithLabelValues("invalid_value").Inc()
			return &errors.ParseError{Line: line, Record: rec,
				Err: fmt.Errorf("%w: %v", errors.ErrInvalidValue, err)}
		}

		sup, ok := byName[name]
		if !ok {
			sup = &models.Supplier{
				Name:  name,
				Tier:  tier,
				Booth: strings.TrimSpace(rec[2]),
			}
			byName[name] = sup
			order = append(order, sup)
		}
		sup.Requests = append(sup.Requests, &models.MeetingRequest{
			Supplier:     name,
			Seq:          seq,
			Type:         session,
			Category:     strings.TrimSpace(rec[5]),
			Value:        value,
			RawAttendees: splitTokens(rec[7]),
		})
		metrics.ParserRecordsTotal.Inc()
		return nil
	})
	return order, err
}

// ParseOpportunities reads the ranked opportunity table. Fields:
// District, ProductLine, Staff, Value
func ParseOpportunities(r io.Reader) ([]opportunity.Row, error) {
	var out []opportunity.Row
	err := readRecords(r, 4, func(line int, rec []string) error {
		value, err := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		if err != nil {
			metrics.ParserErrorsTotal.WithLabelValues("invalid_value").Inc()
			return &errors.ParseError{Line: line, Record: rec,
				Err: fmt.Errorf("%w: %v", errors.ErrInvalidValue, err)}
		}
		out = append(out, opportunity.Row{
			District:    strings.TrimSpace(rec[0]),
			ProductLine: strings.TrimSpace(rec[1]),
			Staff:       strings.TrimSpace(rec[2]),
			Value:       value,
		})
		metrics.ParserRecordsTotal.Inc()
		return nil
	})
	return out, err
}

// readRecords drives a csv.Reader over the input, skipping '#' comment
// lines and enforcing the expected field count.
func readRecords(r io.Reader, fields int, row func(line int, rec []string) error) error {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	lineNum := 0
	for {
		rec, err := reader.Read()
		lineNum++
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error reading CSV at line %d: %w", lineNum, err)
		}
		if len(rec) > 0 && strings.HasPrefix(rec[0], "#") {
			continue
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			metrics.ParserErrorsTotal.WithLabelValues("empty_record").Inc()
			return &errors.ParseError{Line: lineNum, Record: rec, Err: errors.ErrEmptyRecord}
		}
		if len(rec) != fields {
			metrics.ParserErrorsTotal.WithLabelValues("invalid_field_count").Inc()
			return &errors.ParseError{Line: lineNum, Record: rec, Err: errors.ErrInvalidFieldCount}
		}
		if err := row(lineNum, rec); err != nil {
			return err
		}
	}
}

func splitTokens(field string) []string {
	var out []string
	for _, tok := range strings.Split(field, ";") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func isYes(field string) bool {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "y", "yes", "true", "1":
		return true
	default:
		return false
	}
}
