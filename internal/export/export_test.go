package export

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/charmbracelet/x/ansi"

	"patientboard/internal/board"
	"patientboard/internal/model"
	"patientboard/internal/schema"
)

func patient(id int64, name, ward, bed string, tags model.Tags, extra map[string][]model.Item) model.Patient {
	p := model.Patient{
		ID:   id,
		Tags: tags,
		Columns: map[string][]model.Item{
			model.ColumnDemographics: {{ID: id * 10, Fields: map[string]string{"name": name, "hospital_number": "H" + bed}}},
			model.ColumnLocation: {{ID: id*10 + 1, Tags: tags, Fields: map[string]string{
				"hospital": "UCH", "ward": ward, "bed": bed, "category": "Inpatient",
			}}},
		},
	}
	for col, items := range extra {
		p.Columns[col] = items
	}
	return p
}

func testSheet(t *testing.T) Sheet {
	t.Helper()
	sc, err := schema.Default()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	return Sheet{
		Schema:    sc,
		Filter:    board.Filter{Tag: "mine"},
		Generated: time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC),
	}
}

func TestRender_OrdersAndFilters(t *testing.T) {
	t.Parallel()
	patients := []model.Patient{
		patient(1, "Ada Lovelace", "T10", "1", model.Tags{"mine": true}, map[string][]model.Item{
			model.ColumnDiagnosis: {
				{ID: 5, Fields: map[string]string{"condition": "Sepsis", "details": "line infection"}},
				{Fields: map[string]string{}},
			},
		}),
		patient(2, "Alan Turing", "T9", "2", model.Tags{"mine": true}, nil),
		patient(3, "Grace Hopper", "T1", "3", model.Tags{"icu": true}, nil),
	}
	var buf strings.Builder
	n, err := testSheet(t).Render(&buf, patients)
	if err != nil || n != 2 {
		t.Fatalf("Render: n=%d err=%v", n, err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "# Handover: mine\n") || !strings.Contains(out, "_Generated 2024-03-05 09:30, 2 patient(s)_") {
		t.Fatalf("header:\n%s", out)
	}
	turing, ada := strings.Index(out, "## Alan Turing"), strings.Index(out, "## Ada Lovelace (H1)")
	if turing < 0 || ada < 0 || turing > ada {
		t.Fatalf("T9 should come before T10:\n%s", out)
	}
	if strings.Contains(out, "Grace Hopper") {
		t.Fatalf("untagged patient leaked:\n%s", out)
	}
	if !strings.Contains(out, "### Diagnosis\n\n- Sepsis (Details: line infection)\n") {
		t.Fatalf("diagnosis section:\n%s", out)
	}
	if !strings.Contains(out, "**Location:** UCH T9 bed 2, Inpatient") {
		t.Fatalf("location line:\n%s", out)
	}
	if strings.Count(out, "### Diagnosis") != 1 {
		t.Fatalf("empty columns must be skipped:\n%s", out)
	}
}

func TestPretty_RendersText(t *testing.T) {
	t.Parallel()
	out, err := Pretty("# Handover: mine\n\n## Ada Lovelace\n", 60)
	if err != nil {
		t.Fatalf("Pretty: %v", err)
	}
	if !strings.Contains(ansi.Strip(out), "Ada Lovelace") {
		t.Fatalf("rendered output lost text: %q", out)
	}
}

type fakePut struct {
	bucket, key, contentType string
	body                     string
	err                      error
}

func (f *fakePut) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket, f.key, f.contentType = *in.Bucket, *in.Key, *in.ContentType
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Destination_Write(t *testing.T) {
	t.Parallel()
	api := &fakePut{}
	d := NewS3WithAPI(api, "ward-handover", "2024/03/05/mine.md")
	if err := d.Write(context.Background(), []byte("# Handover")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if api.bucket != "ward-handover" || api.key != "2024/03/05/mine.md" || api.body != "# Handover" || !strings.HasPrefix(api.contentType, "text/markdown") {
		t.Fatalf("put %+v", api)
	}
	if d.String() != "s3://ward-handover/2024/03/05/mine.md" {
		t.Fatalf("String %s", d.String())
	}

	boom := errors.New("denied")
	err := NewS3WithAPI(&fakePut{err: boom}, "b", "k").Write(context.Background(), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestNewS3_RequiresBucketAndKey(t *testing.T) {
	t.Parallel()
	if _, err := NewS3(context.Background(), S3Config{Bucket: "b"}); err == nil {
		t.Fatalf("missing key must fail")
	}
}

func TestFileDestination_Write(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out", "handover.md")
	if err := (FileDestination{Path: path}).Write(context.Background(), []byte("hi")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "hi" {
		t.Fatalf("file %q %v", b, err)
	}
}
