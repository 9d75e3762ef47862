package docfile

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type countingEngine struct {
	calls int
	text  string
	err   error
}

func (e *countingEngine) RecognizeImage(_ context.Context, _ []byte) (string, error) {
	e.calls++
	if e.err != nil {
		return "", e.err
	}
	return e.text, nil
}

func (e *countingEngine) Close() error { return nil }

func newStubReader(engine *countingEngine, embeddedText string) *Reader {
	r := New(engine)
	r.pdfText = func(_ []byte) (string, error) { return embeddedText, nil }
	r.rasterize = func(_ []byte) ([][]byte, error) {
		return [][]byte{[]byte("page-1"), []byte("page-2")}, nil
	}
	r.toPNG = func(data []byte) ([]byte, error) { return data, nil }
	r.progress = func(string, int) {}
	return r
}

var pdfHeader = []byte("%PDF-1.7 stub")

func TestDirectTextSkipsOCR(t *testing.T) {
	engine := &countingEngine{text: "should never be used"}
	embedded := strings.Repeat("Remito 123 ", 10) // well over the threshold
	r := newStubReader(engine, embedded)

	text, err := r.Text(context.Background(), "remito.pdf", pdfHeader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != embedded {
		t.Fatalf("expected embedded text back, got %q", text)
	}
	if engine.calls != 0 {
		t.Fatalf("ocr must not run when direct text is long enough, got %d calls", engine.calls)
	}
}

func TestShortTextTriggersPerPageOCR(t *testing.T) {
	engine := &countingEngine{text: "5 Tornillos 2.50"}
	r := newStubReader(engine, "   ")

	text, err := r.Text(context.Background(), "scan.pdf", pdfHeader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if engine.calls != 2 {
		t.Fatalf("expected one ocr call per rasterized page, got %d", engine.calls)
	}
	if text != "5 Tornillos 2.50\n5 Tornillos 2.50" {
		t.Fatalf("expected concatenated page text, got %q", text)
	}
}

func TestOCRFailureDegradesToEmptyText(t *testing.T) {
	engine := &countingEngine{err: errors.New("model unavailable")}
	r := newStubReader(engine, "")

	text, err := r.Text(context.Background(), "scan.pdf", pdfHeader)
	if err != nil {
		t.Fatalf("ocr failure must not propagate, got %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty text, got %q", text)
	}
}

func TestNoEngineDegradesToEmptyText(t *testing.T) {
	r := New(nil)
	r.pdfText = func(_ []byte) (string, error) { return "", nil }
	r.rasterize = func(_ []byte) ([][]byte, error) {
		t.Fatal("rasterize must not be called without an engine")
		return nil, nil
	}

	text, err := r.Text(context.Background(), "scan.pdf", pdfHeader)
	if err != nil || text != "" {
		t.Fatalf("expected empty degradation, got text=%q err=%v", text, err)
	}
}

func TestPDFReadFailureIsStageLabelled(t *testing.T) {
	r := New(nil)
	r.pdfText = func(_ []byte) (string, error) { return "", errors.New("corrupt xref") }

	_, err := r.Text(context.Background(), "broken.pdf", pdfHeader)
	if err == nil || !strings.HasPrefix(err.Error(), "pdf processing:") {
		t.Fatalf("expected pdf processing stage label, got %v", err)
	}
}

func TestImagePathInvokesOCROnce(t *testing.T) {
	engine := &countingEngine{text: "Remito N° 5"}
	r := newStubReader(engine, "")

	text, err := r.Text(context.Background(), "foto.jpg", []byte{0xFF, 0xD8, 0xFF, 0xE0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if engine.calls != 1 {
		t.Fatalf("expected a single ocr call, got %d", engine.calls)
	}
	if text != "Remito N° 5" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestImageDecodeFailureIsStageLabelled(t *testing.T) {
	r := newStubReader(&countingEngine{}, "")
	r.toPNG = func(_ []byte) ([]byte, error) { return nil, errors.New("unknown format") }

	_, err := r.Text(context.Background(), "foto.jpg", []byte{0x00})
	if err == nil || !strings.HasPrefix(err.Error(), "image processing:") {
		t.Fatalf("expected image processing stage label, got %v", err)
	}
}

func TestEmptyDocumentRejected(t *testing.T) {
	r := New(nil)
	if _, err := r.Text(context.Background(), "empty.pdf", nil); err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestContentStreamTextKeepsLineStructure(t *testing.T) {
	stream := []byte("BT\n(Remito N° RM-1) Tj\n0 -12 Td\n(3 Filtro de Aire 15.75) Tj\nET")
	got := textFromContentStream(stream)
	want := "Remito N° RM-1\n3 Filtro de Aire 15.75"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDecodePDFStringEscapes(t *testing.T) {
	got := decodePDFString([]byte(`a\(b\)c\134d\040e`))
	if got != `a(b)c\d e` {
		t.Fatalf("unexpected decode: %q", got)
	}
}

func TestIsPDFSniff(t *testing.T) {
	if !isPDF([]byte("%PDF-1.4")) {
		t.Fatal("expected pdf magic to be detected")
	}
	if isPDF([]byte{0x89, 'P', 'N', 'G'}) {
		t.Fatal("png must not sniff as pdf")
	}
}
