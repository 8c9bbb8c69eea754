package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/xnote/internal/ai"
)

const maxImageSize = 10 << 20 // 10 MB

type saveImageResult struct {
	SavedPath     string `json:"savedPath"`
	MarkdownImage string `json:"markdownImage"`
}

func (s *Server) saveImage(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := req.RequireString("data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	mimeType, data, err := ai.DecodeImage(src)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(data) > maxImageSize {
		return mcp.NewToolResultError(fmt.Sprintf("image too large: %d bytes (max %d)", len(data), maxImageSize)), nil
	}
	if err := checkImageContent(data, mimeType); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	path, err := s.images.Save(mimeType, data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save image: %v", err)), nil
	}

	alt := req.GetString("alt", "")
	if alt == "" {
		alt = filepath.Base(path)
	}
	out, _ := json.Marshal(saveImageResult{
		SavedPath:     path,
		MarkdownImage: fmt.Sprintf("![%s](%s)", alt, filepath.ToSlash(path)),
	})
	return mcp.NewToolResultText(string(out)), nil
}

// checkImageContent verifies the bytes are an image of the declared type.
func checkImageContent(data []byte, mimeType string) error {
	detected := strings.Split(http.DetectContentType(data), ";")[0]
	if !strings.HasPrefix(detected, "image/") {
		return fmt.Errorf("content is not an image (detected: %s)", detected)
	}
	declared := strings.ToLower(mimeType)
	if declared == "image/jpg" {
		declared = "image/jpeg"
	}
	if detected != declared {
		return fmt.Errorf("content does not match %s (detected: %s)", mimeType, detected)
	}
	return nil
}
