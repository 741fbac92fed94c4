package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/grade-overlay-mcp/internal/annotation"
	"github.com/ironsheep/grade-overlay-mcp/internal/geometry"
	"github.com/ironsheep/grade-overlay-mcp/internal/grading"
	"github.com/ironsheep/grade-overlay-mcp/internal/history"
	"github.com/ironsheep/grade-overlay-mcp/internal/imaging"
	"github.com/ironsheep/grade-overlay-mcp/internal/session"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "submission_add_page").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// errUnknownTool is returned by executeTool for names it does not know.
var errUnknownTool = errors.New("unknown tool")

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Warn().Err(err).Str("tool", params.Name).Msg("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Pages
	case "submission_add_page":
		return s.handleAddPage(args)
	case "submission_remove_page":
		return s.handleRemovePage(args)
	case "submission_pages":
		return s.handlePages(args)
	case "page_detect_bounds":
		return s.handleDetectBounds(args)
	case "page_crop":
		return s.handleCrop(args)

	// Grading
	case "grader_configure":
		return s.handleGraderConfigure(args)
	case "submission_grade":
		return s.handleGrade(ctx, args)

	// Annotations
	case "annotation_set_tool":
		return s.handleSetTool(args)
	case "annotation_click":
		return s.handleClick(args, false)
	case "annotation_double_click":
		return s.handleClick(args, true)
	case "annotation_text_commit":
		return s.handleTextCommit(args)
	case "annotation_remove":
		return s.handleAnnotationRemove(args)
	case "annotation_list":
		return s.handleAnnotationList(args)

	// Output and history
	case "submission_render":
		return s.handleRender(ctx, args)
	case "history_save":
		return s.handleHistorySave(ctx, args)
	case "history_list":
		return s.handleHistoryList(ctx, args)
	case "history_get":
		return s.handleHistoryGet(ctx, args)
	case "history_delete":
		return s.handleHistoryDelete(ctx, args)
	case "history_export_csv":
		return s.handleExportCSV(ctx, args)
	case "rubric_save":
		return s.handleRubricSave(ctx, args)
	case "rubric_list":
		return s.handleRubricList(ctx)
	case "rubric_delete":
		return s.handleRubricDelete(ctx, args)
	case "class_list":
		return s.handleClassList(ctx)
	case "class_add":
		return s.handleClassAdd(ctx, args)
	case "submission_reset":
		return s.handleReset()

	default:
		return nil, fmt.Errorf("%w: %s", errUnknownTool, name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments. Missing arguments decode as {}.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// === Page Handlers ===

type pageInfo struct {
	Index    int    `json:"index"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	MIMEType string `json:"mimeType"`
	Bytes    int    `json:"bytes"`
	DataURL  string `json:"dataUrl,omitempty"`
}

func newPageInfo(i int, a imaging.Asset, withData bool) pageInfo {
	p := pageInfo{Index: i, Width: a.Width, Height: a.Height, MIMEType: a.MIMEType, Bytes: len(a.Data)}
	if withData {
		p.DataURL = imaging.DataURL(a)
	}
	return p
}

type addPageArgs struct {
	Path string `json:"path"`
	Data string `json:"data"`
}

func (s *Server) handleAddPage(args json.RawMessage) (interface{}, error) {
	var a addPageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	var (
		asset imaging.Asset
		err   error
	)
	switch {
	case a.Path != "":
		asset, err = s.cache.Load(a.Path)
	case a.Data != "":
		asset, err = imaging.AssetFromDataURL(a.Data)
	default:
		return nil, errors.New("either path or data is required")
	}
	if err != nil {
		return nil, err
	}

	idx, err := s.session.AddPage(asset)
	if err != nil {
		return nil, err
	}
	if a.Path != "" {
		// A rescan may overwrite the same path.
		s.cache.Evict(a.Path)
	}
	return newPageInfo(idx, asset, false), nil
}

type pageIndexArgs struct {
	Index int `json:"index"`
}

func (s *Server) handleRemovePage(args json.RawMessage) (interface{}, error) {
	var a pageIndexArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := s.session.RemovePage(a.Index); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"removed": a.Index,
		"pages":   len(s.session.Pages()),
	}, nil
}

type pagesArgs struct {
	IncludeData bool `json:"include_data"`
}

func (s *Server) handlePages(args json.RawMessage) (interface{}, error) {
	var a pagesArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	pages := s.session.Pages()
	out := make([]pageInfo, len(pages))
	for i, p := range pages {
		out[i] = newPageInfo(i, p, a.IncludeData)
	}
	return map[string]interface{}{"pages": out}, nil
}

type detectBoundsArgs struct {
	Index           int     `json:"index"`
	ContainerWidth  float64 `json:"container_width"`
	ContainerHeight float64 `json:"container_height"`
}

func (s *Server) handleDetectBounds(args json.RawMessage) (interface{}, error) {
	var a detectBoundsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	container, err := s.container(a.Index, a.ContainerWidth, a.ContainerHeight)
	if err != nil {
		return nil, err
	}
	d, err := s.session.DetectBounds(a.Index, container)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"detected": d.Result.Detected,
		"crop":     rectJSON(d.Crop),
		"viewport": d.Viewport,
	}, nil
}

// container defaults an unset view size to the page's own size.
func (s *Server) container(index int, w, h float64) (geometry.Size, error) {
	if w > 0 && h > 0 {
		return geometry.Size{Width: w, Height: h}, nil
	}
	p, err := s.session.Page(index)
	if err != nil {
		return geometry.Size{}, err
	}
	return geometry.Size{Width: float64(p.Width), Height: float64(p.Height)}, nil
}

func rectJSON(r image.Rectangle) map[string]int {
	return map[string]int{"x1": r.Min.X, "y1": r.Min.Y, "x2": r.Max.X, "y2": r.Max.Y}
}

type cropArgs struct {
	Index           int                `json:"index"`
	X1              int                `json:"x1"`
	Y1              int                `json:"y1"`
	X2              int                `json:"x2"`
	Y2              int                `json:"y2"`
	Clamp           bool               `json:"clamp"`
	Viewport        *geometry.Viewport `json:"viewport"`
	ContainerWidth  float64            `json:"container_width"`
	ContainerHeight float64            `json:"container_height"`
}

func (s *Server) handleCrop(args json.RawMessage) (interface{}, error) {
	var a cropArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	var (
		out imaging.Asset
		err error
	)
	if a.Viewport != nil {
		container, cerr := s.container(a.Index, a.ContainerWidth, a.ContainerHeight)
		if cerr != nil {
			return nil, cerr
		}
		out, err = s.session.CropPageToViewport(a.Index, *a.Viewport, container)
	} else {
		rect := image.Rect(a.X1, a.Y1, a.X2, a.Y2)
		if a.Clamp {
			page, perr := s.session.Page(a.Index)
			if perr != nil {
				return nil, perr
			}
			size := geometry.Size{Width: float64(page.Width), Height: float64(page.Height)}
			rect = geometry.ClampRect(geometry.RectFrom(rect), size)
		}
		out, err = s.session.CropPage(a.Index, rect)
	}
	if err != nil {
		return nil, err
	}
	return newPageInfo(a.Index, out, false), nil
}

// === Grading Handlers ===

type graderConfigureArgs struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

func (s *Server) handleGraderConfigure(args json.RawMessage) (interface{}, error) {
	var a graderConfigureArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	s.grader.Reconfigure(a.APIKey, a.Model)
	s.log.Info().Bool("configured", s.grader.Configured()).Str("model", s.grader.Model()).Msg("grader reconfigured")
	return map[string]interface{}{
		"configured": s.grader.Configured(),
		"model":      s.grader.Model(),
	}, nil
}

type gradeArgs struct {
	AnswerKeyText     string `json:"answer_key_text"`
	AnswerKeyPath     string `json:"answer_key_path"`
	AnswerKeyData     string `json:"answer_key_data"`
	AnswerKeyMIMEType string `json:"answer_key_mime_type"`
	RubricID          string `json:"rubric_id"`
}

func (s *Server) handleGrade(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a gradeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	key, err := s.answerKey(ctx, a)
	if err != nil {
		return nil, err
	}

	res, err := s.session.Submit(ctx, s.grader, key)
	if err != nil {
		var f *grading.Failure
		if errors.As(err, &f) {
			return nil, errors.New(f.Message)
		}
		return nil, err
	}
	return map[string]interface{}{
		"result":      res,
		"annotations": s.session.Annotations(),
	}, nil
}

func (s *Server) answerKey(ctx context.Context, a gradeArgs) (session.AnswerKey, error) {
	key := session.AnswerKey{Text: strings.TrimSpace(a.AnswerKeyText)}

	if a.RubricID != "" && key.Text == "" {
		rubrics, err := s.repo.Rubrics(ctx)
		if err != nil {
			return key, err
		}
		found := false
		for _, r := range rubrics {
			if r.ID == a.RubricID {
				key.Text = r.AnswerKeyText
				found = true
				break
			}
		}
		if !found {
			return key, fmt.Errorf("rubric %s: %w", a.RubricID, history.ErrNotFound)
		}
	}

	var (
		data []byte
		mime string
		err  error
	)
	switch {
	case a.AnswerKeyPath != "":
		data, err = os.ReadFile(a.AnswerKeyPath)
	case a.AnswerKeyData != "":
		data, mime, err = imaging.ParseDataURL(a.AnswerKeyData)
	default:
		return key, nil
	}
	if err != nil {
		return key, fmt.Errorf("answer key file: %w", err)
	}
	if a.AnswerKeyMIMEType != "" {
		mime = a.AnswerKeyMIMEType
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	key.File = &grading.File{Data: data, MIMEType: mime}
	return key, nil
}

// === Annotation Handlers ===

type setToolArgs struct {
	Tool string `json:"tool"`
}

func (s *Server) handleSetTool(args json.RawMessage) (interface{}, error) {
	var a setToolArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	k, err := annotation.ParseKind(a.Tool)
	if err != nil {
		return nil, err
	}
	if err := s.session.Editor().SetTool(k); err != nil {
		return nil, err
	}
	return map[string]interface{}{"tool": k}, nil
}

type clickArgs struct {
	Page      int           `json:"page"`
	X         float64       `json:"x"`
	Y         float64       `json:"y"`
	Container geometry.Rect `json:"container"`
	Zoom      float64       `json:"zoom"`
	PanX      float64       `json:"pan_x"`
	PanY      float64       `json:"pan_y"`
	GlyphSize float64       `json:"glyph_size"`
}

type clickResult struct {
	Outcome    annotation.Outcome      `json:"outcome"`
	Annotation *annotation.Annotation  `json:"annotation,omitempty"`
	Pending    *annotation.PendingText `json:"pending,omitempty"`
}

func (s *Server) handleClick(args json.RawMessage, double bool) (interface{}, error) {
	var a clickArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	container := a.Container
	if container.Size().Empty() {
		page, err := s.session.Page(a.Page)
		if err != nil {
			return nil, err
		}
		container = geometry.Rect{Width: float64(page.Width), Height: float64(page.Height)}
	}
	l := annotation.Layout{
		Container: container,
		Viewport:  geometry.Viewport{Zoom: a.Zoom, Pan: geometry.Point{X: a.PanX, Y: a.PanY}},
		GlyphSize: a.GlyphSize,
	}
	p := geometry.Point{X: a.X, Y: a.Y}

	click := s.session.Click
	if double {
		click = s.session.DoubleClick
	}
	out, ann, err := click(a.Page, p, l)
	if err != nil {
		return nil, err
	}

	res := clickResult{Outcome: out}
	if out == annotation.Placed || out == annotation.Removed {
		res.Annotation = &ann
	}
	if pending, ok := s.session.Editor().Pending(); ok {
		res.Pending = &pending
	}
	return res, nil
}

type textCommitArgs struct {
	Text   string `json:"text"`
	Cancel bool   `json:"cancel"`
}

func (s *Server) handleTextCommit(args json.RawMessage) (interface{}, error) {
	var a textCommitArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	ed := s.session.Editor()
	if a.Cancel {
		ed.Cancel()
		return map[string]interface{}{"committed": false}, nil
	}
	if !ed.SetDraft(a.Text) {
		return nil, errors.New("no text entry is open")
	}
	ann, ok := ed.Commit()
	if !ok {
		return map[string]interface{}{"committed": false}, nil
	}
	return map[string]interface{}{"committed": true, "annotation": ann}, nil
}

type annotationRemoveArgs struct {
	ID string `json:"id"`
}

func (s *Server) handleAnnotationRemove(args json.RawMessage) (interface{}, error) {
	var a annotationRemoveArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"removed": s.session.Editor().Store().Remove(a.ID),
	}, nil
}

type annotationListArgs struct {
	Page *int `json:"page"`
}

func (s *Server) handleAnnotationList(args json.RawMessage) (interface{}, error) {
	var a annotationListArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	ed := s.session.Editor()
	list := ed.Store().All()
	if a.Page != nil {
		list = annotation.ForPage(list, *a.Page)
	}
	out := map[string]interface{}{
		"tool":        ed.Tool(),
		"annotations": list,
	}
	if pending, ok := ed.Pending(); ok {
		out["pending"] = pending
	}
	return out, nil
}

// === Output and History Handlers ===

type renderArgs struct {
	OutputDir string `json:"output_dir"`
}

type renderedPage struct {
	Name    string `json:"name"`
	Path    string `json:"path,omitempty"`
	DataURL string `json:"dataUrl,omitempty"`
}

func (s *Server) handleRender(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a renderArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	shared, err := s.session.Share(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]renderedPage, len(shared))
	for i, p := range shared {
		out[i] = renderedPage{Name: p.Name, DataURL: p.DataURL}
		if a.OutputDir == "" {
			continue
		}
		data, _, err := imaging.ParseDataURL(p.DataURL)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(a.OutputDir, 0o755); err != nil {
			return nil, err
		}
		path := filepath.Join(a.OutputDir, p.Name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, err
		}
		out[i] = renderedPage{Name: p.Name, Path: path}
	}
	return map[string]interface{}{"pages": out}, nil
}

type itemSummary struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	ClassName   string    `json:"className"`
	Score       float64   `json:"score"`
	MaxScore    float64   `json:"maxScore"`
	LetterGrade string    `json:"letterGrade"`
	Summary     string    `json:"summary"`
	Pages       int       `json:"pages"`
	PageData    []string  `json:"pageData,omitempty"`
}

func summarize(it history.Item, withPages bool) itemSummary {
	sum := itemSummary{
		ID:          it.ID,
		Timestamp:   it.Timestamp,
		ClassName:   it.ClassName,
		Score:       it.Score,
		MaxScore:    it.MaxScore,
		LetterGrade: it.LetterGrade,
		Summary:     it.Result.Summary,
		Pages:       len(it.Pages),
	}
	if withPages {
		for _, p := range it.Pages {
			sum.PageData = append(sum.PageData, imaging.DataURL(p))
		}
	}
	return sum
}

type classArgs struct {
	ClassName    string `json:"class_name"`
	IncludePages bool   `json:"include_pages"`
	Path         string `json:"path"`
}

func (s *Server) handleHistorySave(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a classArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	it, err := s.session.Save(ctx, s.repo, a.ClassName)
	if err != nil {
		return nil, err
	}
	return summarize(it, false), nil
}

func (s *Server) handleHistoryList(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a classArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	items, err := s.repo.Items(ctx, a.ClassName)
	if err != nil {
		return nil, err
	}
	out := make([]itemSummary, len(items))
	for i, it := range items {
		out[i] = summarize(it, a.IncludePages)
	}
	return map[string]interface{}{"items": out}, nil
}

type idArgs struct {
	ID string `json:"id"`
}

func (s *Server) handleHistoryGet(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a idArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	it, err := s.repo.Item(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"item":   summarize(it, true),
		"result": it.Result,
	}, nil
}

func (s *Server) handleHistoryDelete(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a idArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := s.repo.DeleteItem(ctx, a.ID); err != nil {
		return nil, err
	}
	return map[string]interface{}{"deleted": a.ID}, nil
}

func (s *Server) handleExportCSV(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a classArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	items, err := s.repo.Items(ctx, a.ClassName)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	if err := history.ExportCSV(&sb, items, a.ClassName); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return map[string]interface{}{"csv": sb.String(), "rows": len(items)}, nil
	}
	if err := os.WriteFile(a.Path, []byte(sb.String()), 0o644); err != nil {
		return nil, err
	}
	return map[string]interface{}{"path": a.Path, "rows": len(items)}, nil
}

type rubricSaveArgs struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	AnswerKeyText string `json:"answer_key_text"`
}

func (s *Server) handleRubricSave(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a rubricSaveArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(a.Name)
	if name == "" {
		return nil, errors.New("rubric name is required")
	}
	r := history.Rubric{
		ID:            a.ID,
		Name:          name,
		AnswerKeyText: a.AnswerKeyText,
		CreatedAt:     time.Now().UTC(),
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if err := s.repo.SaveRubric(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Server) handleRubricList(ctx context.Context) (interface{}, error) {
	rubrics, err := s.repo.Rubrics(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"rubrics": rubrics}, nil
}

func (s *Server) handleRubricDelete(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a idArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := s.repo.DeleteRubric(ctx, a.ID); err != nil {
		return nil, err
	}
	return map[string]interface{}{"deleted": a.ID}, nil
}

func (s *Server) handleClassList(ctx context.Context) (interface{}, error) {
	classes, err := s.repo.Classes(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"classes": classes}, nil
}

type classAddArgs struct {
	Name string `json:"name"`
}

func (s *Server) handleClassAdd(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a classAddArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	name := history.NormalizeClass(a.Name)
	if name == "" {
		return nil, errors.New("class name is required")
	}
	if err := s.repo.AddClass(ctx, name); err != nil {
		return nil, err
	}
	return s.handleClassList(ctx)
}

func (s *Server) handleReset() (interface{}, error) {
	if err := s.session.Reset(); err != nil {
		return nil, err
	}
	s.cache.Clear()
	return map[string]interface{}{"reset": true}, nil
}
