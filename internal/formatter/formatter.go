// package formatter exports an account's boards to CSV, Markdown, plain text, JSON and YAML
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/pinx/internal/models"
	"github.com/desertthunder/pinx/internal/shared"
	"gopkg.in/yaml.v3"
)

// Supported export formats.
const (
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// Formats lists every supported export format.
var Formats = []string{FormatJSON, FormatYAML, FormatCSV, FormatMarkdown, FormatText}

// AccountExport is an account and its boards without credentials.
type AccountExport struct {
	AccountID     string         `json:"id" yaml:"id"`
	User          models.User    `json:"user" yaml:"user"`
	LastRefreshed time.Time      `json:"lastRefreshed" yaml:"last_refreshed"`
	Boards        []models.Board `json:"boards" yaml:"boards"`
}

// NewAccountExport builds an export for account. The token is left out.
func NewAccountExport(account models.Account, boards []models.Board) *AccountExport {
	if boards == nil {
		boards = []models.Board{}
	}
	return &AccountExport{
		AccountID:     account.ID,
		User:          account.User,
		LastRefreshed: account.RefreshedAt().UTC(),
		Boards:        boards,
	}
}

// ExportToCSV converts an AccountExport to CSV with columns: ID, Name, Privacy, Pins, Followers, Created, Description
func ExportToCSV(export *AccountExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Privacy", "Pins", "Followers", "Created", "Description"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, board := range export.Boards {
		record := []string{
			board.ID,
			board.Name,
			board.Privacy,
			strconv.Itoa(board.PinCount),
			strconv.Itoa(board.FollowerCount),
			board.CreatedAt,
			board.Description,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown converts an AccountExport to Markdown with an optional profile image
func ExportToMarkdown(export *AccountExport, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	name := export.AccountID
	if export.User.BusinessName != "" {
		name = export.User.BusinessName
	}
	fmt.Fprintf(&buf, "# %s\n\n", name)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Profile](%s)\n\n", imageFilename)
	}

	fmt.Fprintf(&buf, "**Username**: %s\n", export.AccountID)
	if export.User.AccountType != "" {
		fmt.Fprintf(&buf, "**Account type**: %s\n", export.User.AccountType)
	}
	fmt.Fprintf(&buf, "**Boards**: %d\n", len(export.Boards))
	fmt.Fprintf(&buf, "**Last refreshed**: %s\n\n", export.LastRefreshed.Format(time.RFC3339))

	buf.WriteString("## Boards\n\n")
	for i, board := range export.Boards {
		privacy := ""
		if board.Privacy != "" {
			privacy = fmt.Sprintf(" (%s)", strings.ToLower(board.Privacy))
		}
		fmt.Fprintf(&buf, "%d. **%s**%s [%d pins]\n", i+1, board.Name, privacy, board.PinCount)
		if board.Description != "" {
			fmt.Fprintf(&buf, "   %s\n", board.Description)
		}
	}
	return buf.Bytes(), nil
}

// ExportToText converts an AccountExport to plain text
func ExportToText(export *AccountExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Account: %s\n", export.AccountID)
	fmt.Fprintf(&buf, "Boards: %d\n\n", len(export.Boards))
	for i, board := range export.Boards {
		fmt.Fprintf(&buf, "%d. %s (%d pins)\n", i+1, board.Name, board.PinCount)
	}
	return buf.Bytes(), nil
}

// ExportToYAML converts an AccountExport to YAML
func ExportToYAML(export *AccountExport) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(export); err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToJSON converts an AccountExport to indented JSON
func ExportToJSON(export *AccountExport) ([]byte, error) {
	return shared.MarshalJSON(export, true)
}

// ToMetadataJSON generates a JSON representation of the account (without boards)
func ToMetadataJSON(export *AccountExport) ([]byte, error) {
	return shared.MarshalJSON(struct {
		AccountID     string      `json:"id"`
		User          models.User `json:"user"`
		LastRefreshed time.Time   `json:"lastRefreshed"`
		BoardCount    int         `json:"boardCount"`
	}{export.AccountID, export.User, export.LastRefreshed, len(export.Boards)}, true)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return imageData, nil
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	BoardsFile   string
	MetadataFile string
}

// WriteCSVExport writes {base}_boards.csv and {base}_metadata.json. The base defaults to the account ID.
func WriteCSVExport(export *AccountExport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = export.AccountID
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}
	boardsFile := baseFilepath + "_boards.csv"
	if err := os.WriteFile(boardsFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}
	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{BoardsFile: boardsFile, MetadataFile: metadataFile}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory    string
	Files        []string
	ProfileImage string
}

// WriteMarkdownExport writes {dir}/README.md and, when the profile has an image that downloads, {dir}/profile.jpg.
// The directory defaults to the account ID.
func WriteMarkdownExport(export *AccountExport, outputDir string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = export.AccountID
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{Directory: outputDir, Files: []string{}}

	var imageFilename string
	if export.User.ProfileImage != "" {
		imageData, err := DownloadImage(export.User.ProfileImage)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download profile image: %v\n", err)
		} else {
			imageFilename = "profile.jpg"
			imagePath := filepath.Join(outputDir, imageFilename)
			if err := os.WriteFile(imagePath, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save profile image: %v\n", err)
				imageFilename = ""
			} else {
				result.ProfileImage = imagePath
				result.Files = append(result.Files, imagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(export, imageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}
	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	result.Files = append(result.Files, mdFile)
	return result, nil
}

// Write exports to outputDir in format and returns the files created.
func Write(export *AccountExport, format, outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	base := filepath.Join(outputDir, export.AccountID)

	var (
		data []byte
		ext  string
		err  error
	)
	switch format {
	case FormatCSV:
		res, err := WriteCSVExport(export, base)
		if err != nil {
			return nil, err
		}
		return []string{res.BoardsFile, res.MetadataFile}, nil
	case FormatMarkdown:
		res, err := WriteMarkdownExport(export, base)
		if err != nil {
			return nil, err
		}
		return res.Files, nil
	case FormatText:
		data, err = ExportToText(export)
		ext = "_boards.txt"
	case FormatYAML:
		data, err = ExportToYAML(export)
		ext = ".yaml"
	case FormatJSON, "":
		data, err = ExportToJSON(export)
		ext = ".json"
	default:
		return nil, fmt.Errorf("%w: format %q (want one of %s)", shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
	}
	if err != nil {
		return nil, err
	}

	path := base + ext
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return []string{path}, nil
}
