package analyze

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const maxAnswerRunes = 300

// Row is one CSV record keyed by header.
type Row map[string]string

// LoadCSV reads a headed CSV file (SJQ responses or public records).
func LoadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []Row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	rows := []Row{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read record: %w", err)
		}
		row := make(Row, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// VoirDireEvent is one recorded question and answer.
type VoirDireEvent struct {
	JurorLabel   string `json:"juror_label"`
	QuestionID   string `json:"question_id"`
	QuestionText string `json:"question_text"`
	AnswerText   string `json:"answer_text"`
	Timestamp    string `json:"timestamp"`
}

// LoadVoirDire reads JSONL events, skipping blank lines.
func LoadVoirDire(r io.Reader) ([]VoirDireEvent, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	events := []VoirDireEvent{}
	line := 0
	for sc.Scan() {
		line++
		b := strings.TrimSpace(sc.Text())
		if b == "" {
			continue
		}
		var e VoirDireEvent
		if err := json.Unmarshal([]byte(b), &e); err != nil {
			return nil, fmt.Errorf("voir dire: line %d: %w", line, err)
		}
		events = append(events, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("voir dire: read: %w", err)
	}
	return events, nil
}

// Answer is one juror response in the distribution.
type Answer struct {
	Juror     string `json:"juror"`
	Answer    string `json:"answer"`
	Timestamp string `json:"timestamp"`
}

// QuestionResponses groups answers to one question.
type QuestionResponses struct {
	QuestionID   string   `json:"question_id"`
	QuestionText string   `json:"question_text"`
	Answers      []Answer `json:"answers"`
}

// Distribution is the response distribution map, questions in first-seen order.
type Distribution struct {
	Questions      []QuestionResponses `json:"questions"`
	SJQRespondents int                 `json:"sjq_respondents"`
}

// ResponseDistribution groups voir dire answers by question. SJQ rows only
// contribute the respondent count.
func ResponseDistribution(sjq []Row, events []VoirDireEvent) Distribution {
	d := Distribution{Questions: []QuestionResponses{}, SJQRespondents: len(sjq)}
	index := make(map[string]int)
	for _, e := range events {
		qid := e.QuestionID
		if qid == "" {
			qid = "Q?"
		}
		i, ok := index[qid]
		if !ok {
			i = len(d.Questions)
			index[qid] = i
			d.Questions = append(d.Questions, QuestionResponses{QuestionID: qid, QuestionText: e.QuestionText, Answers: []Answer{}})
		}
		d.Questions[i].Answers = append(d.Questions[i].Answers, Answer{
			Juror:     e.JurorLabel,
			Answer:    truncateRunes(strings.TrimSpace(e.AnswerText), maxAnswerRunes),
			Timestamp: e.Timestamp,
		})
	}
	return d
}

// DisclosureFlag marks a declared answer that public records contradict.
type DisclosureFlag struct {
	Juror        string `json:"juror"`
	Field        string `json:"field"`
	Declared     string `json:"declared"`
	PublicRecord string `json:"public_record"`
	Note         string `json:"note"`
}

const disclosureNote = "Flag for counsel review (nondisclosure consistency)."

// truthy treats "", "no", "none" and "0" as a negative declaration.
func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "no", "none", "0":
		return false
	}
	return true
}

// DisclosureFlags compares declared litigation history in the SJQ against
// public records (juror_label, field, value). Only direct contradictions are
// flagged, and only for jurors present in the records.
func DisclosureFlags(sjq, records []Row) []DisclosureFlag {
	flags := []DisclosureFlag{}
	if len(records) == 0 {
		return flags
	}
	public := make(map[string]bool)
	for _, r := range records {
		if r["field"] == "litigation_history" {
			public[r["juror_label"]] = truthy(r["value"])
		}
	}
	for _, s := range sjq {
		juror := s["juror_label"]
		has, ok := public[juror]
		if !ok {
			continue
		}
		declared := s["litigation_history_declared"]
		if has == truthy(declared) {
			continue
		}
		pr := "indicates none"
		if has {
			pr = "indicates history"
		}
		flags = append(flags, DisclosureFlag{
			Juror:        juror,
			Field:        "litigation_history",
			Declared:     declared,
			PublicRecord: pr,
			Note:         disclosureNote,
		})
	}
	return flags
}
