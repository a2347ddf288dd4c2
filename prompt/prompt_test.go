package prompt

import (
	"strings"
	"testing"
)

func TestBuildWithImage(t *testing.T) {
	req := Build(Capture{ImageData: []byte{0xFF, 0xD8}, MimeType: "image/png"})

	if !req.HasImage() {
		t.Fatal("request should carry the image")
	}
	if req.MimeType != "image/png" {
		t.Errorf("MimeType = %q, want image/png", req.MimeType)
	}
	if req.Ingredients != "" {
		t.Errorf("Ingredients = %q, want empty", req.Ingredients)
	}
	if req.Instruction == "" {
		t.Error("Instruction must always be set")
	}
}

func TestBuildDefaultsMimeType(t *testing.T) {
	req := Build(Capture{ImageData: []byte{0xFF, 0xD8}})
	if req.MimeType != "image/jpeg" {
		t.Errorf("MimeType = %q, want image/jpeg default", req.MimeType)
	}
}

func TestBuildImageTakesPrecedenceOverText(t *testing.T) {
	req := Build(Capture{ImageData: []byte{0x01}, Ingredients: "sugar, salt"})

	if !req.HasImage() {
		t.Fatal("image capture must win when both inputs are present")
	}
	if req.Ingredients != "" {
		t.Errorf("Ingredients = %q, want empty when image present", req.Ingredients)
	}
}

func TestBuildWithIngredients(t *testing.T) {
	req := Build(Capture{Ingredients: "water, sugar, E330"})

	if req.HasImage() {
		t.Fatal("text capture must not carry image data")
	}
	if req.Ingredients != "water, sugar, E330" {
		t.Errorf("Ingredients = %q, want passthrough", req.Ingredients)
	}
}

func TestInstructionMentionsDelimiter(t *testing.T) {
	req := Build(Capture{Ingredients: "water"})
	if !strings.Contains(req.Instruction, Delimiter) {
		t.Errorf("instruction must tell the model to emit the %s block", Delimiter)
	}
}
