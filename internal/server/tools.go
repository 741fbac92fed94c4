package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

func object(required []string, props map[string]interface{}) map[string]interface{} {
	s := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var (
	pageIndexProp = prop("integer", "Zero-based page index")
	classNameProp = prop("string", "Class name. Empty means all classes")
)

// clickSchema is shared by the single and double click tools.
func clickSchema() map[string]interface{} {
	return object([]string{"page", "x", "y"}, map[string]interface{}{
		"page": pageIndexProp,
		"x":    prop("number", "Click X in view coordinates"),
		"y":    prop("number", "Click Y in view coordinates"),
		"container": object([]string{"width", "height"}, map[string]interface{}{
			"x":      prop("number", "Left edge of the page view"),
			"y":      prop("number", "Top edge of the page view"),
			"width":  prop("number", "Width of the page view"),
			"height": prop("number", "Height of the page view"),
		}),
		"zoom":       prop("number", "Current zoom (1 = fit). Clicks are ignored while zoomed in"),
		"pan_x":      prop("number", "Horizontal pan in view units"),
		"pan_y":      prop("number", "Vertical pan in view units"),
		"glyph_size": prop("number", "Marker size in view units used for hit testing. Default derived from page width"),
	})
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Pages
		{
			Name:        "submission_add_page",
			Description: "Add a page of the student's submission from an image file or a data URL. Returns its index and size.",
			InputSchema: object(nil, map[string]interface{}{
				"path": prop("string", "Absolute path to an image file (PNG, JPEG, GIF, BMP, TIFF, WebP)"),
				"data": prop("string", "Image as a data URL or bare base64, used when path is empty"),
			}),
		},
		{
			Name:        "submission_remove_page",
			Description: "Remove a page. Annotations on it are dropped and later pages move up.",
			InputSchema: object([]string{"index"}, map[string]interface{}{
				"index": pageIndexProp,
			}),
		},
		{
			Name:        "submission_pages",
			Description: "List the pages of the current submission.",
			InputSchema: object(nil, map[string]interface{}{
				"include_data": prop("boolean", "Include each page as a data URL"),
			}),
		},
		{
			Name:        "page_detect_bounds",
			Description: "Detect the sheet of paper on a page. Returns the suggested crop (the whole page when nothing is detected) and a viewport that frames it.",
			InputSchema: object([]string{"index"}, map[string]interface{}{
				"index":            pageIndexProp,
				"container_width":  prop("number", "Width of the crop view. Default page width"),
				"container_height": prop("number", "Height of the crop view. Default page height"),
			}),
		},
		{
			Name:        "page_crop",
			Description: "Crop a page, either to a pixel rectangle or to what is visible through a zoomed viewport. The page is replaced by the crop.",
			InputSchema: object([]string{"index"}, map[string]interface{}{
				"index": pageIndexProp,
				"x1":    prop("integer", "Left edge X coordinate (0-based)"),
				"y1":    prop("integer", "Top edge Y coordinate (0-based)"),
				"x2":    prop("integer", "Right edge X coordinate (exclusive)"),
				"y2":    prop("integer", "Bottom edge Y coordinate (exclusive)"),
				"clamp": prop("boolean", "Clip the rectangle to the page instead of failing"),
				"viewport": object([]string{"zoom"}, map[string]interface{}{
					"zoom": prop("number", "Zoom factor, at least 1"),
					"pan": object(nil, map[string]interface{}{
						"x": prop("number", "Horizontal pan in view units"),
						"y": prop("number", "Vertical pan in view units"),
					}),
				}),
				"container_width":  prop("number", "Width of the crop view. Default page width"),
				"container_height": prop("number", "Height of the crop view. Default page height"),
			}),
		},

		// Grading
		{
			Name:        "grader_configure",
			Description: "Set or replace the grading API key and model.",
			InputSchema: object(nil, map[string]interface{}{
				"api_key": prop("string", "Gemini API key. Empty leaves the grader unconfigured"),
				"model":   prop("string", "Model name. Default gemini-2.5-flash"),
			}),
		},
		{
			Name:        "submission_grade",
			Description: "Grade every page in one call. On success the score label and correctness markers replace the current annotations.",
			InputSchema: object(nil, map[string]interface{}{
				"answer_key_text":      prop("string", "Answer key as text"),
				"answer_key_path":      prop("string", "Absolute path to an answer key image or PDF"),
				"answer_key_data":      prop("string", "Answer key file as a data URL or base64"),
				"answer_key_mime_type": prop("string", "MIME type of the answer key file. Default detected"),
				"rubric_id":            prop("string", "Use a saved rubric's text when answer_key_text is empty"),
			}),
		},

		// Annotations
		{
			Name:        "annotation_set_tool",
			Description: "Select the tool used by single clicks.",
			InputSchema: object([]string{"tool"}, map[string]interface{}{
				"tool": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"correct", "incorrect", "text"},
					"description": "Marker placed by a click",
				},
			}),
		},
		{
			Name:        "annotation_click",
			Description: "Click on a page view. Removes the marker under the click, or places one with the active tool. The text tool opens a pending entry instead.",
			InputSchema: clickSchema(),
		},
		{
			Name:        "annotation_double_click",
			Description: "Double click on a page view. Always places an incorrect marker.",
			InputSchema: clickSchema(),
		},
		{
			Name:        "annotation_text_commit",
			Description: "Finish the pending text entry. Empty text discards it.",
			InputSchema: object(nil, map[string]interface{}{
				"text":   prop("string", "Text of the label"),
				"cancel": prop("boolean", "Discard the entry"),
			}),
		},
		{
			Name:        "annotation_remove",
			Description: "Remove an annotation by id.",
			InputSchema: object([]string{"id"}, map[string]interface{}{
				"id": prop("string", "Annotation id"),
			}),
		},
		{
			Name:        "annotation_list",
			Description: "List annotations, the active tool and any pending text entry.",
			InputSchema: object(nil, map[string]interface{}{
				"page": prop("integer", "Only this page"),
			}),
		},

		// Output and history
		{
			Name:        "submission_render",
			Description: "Burn the annotations into every page. Returns data URLs, or writes JPEG files when output_dir is set.",
			InputSchema: object(nil, map[string]interface{}{
				"output_dir": prop("string", "Directory to write the pages to"),
			}),
		},
		{
			Name:        "history_save",
			Description: "Save the graded submission with annotations burned in.",
			InputSchema: object(nil, map[string]interface{}{
				"class_name": prop("string", "Class to file it under. Default the class the grader detected"),
			}),
		},
		{
			Name:        "history_list",
			Description: "List saved submissions, newest first.",
			InputSchema: object(nil, map[string]interface{}{
				"class_name":    classNameProp,
				"include_pages": prop("boolean", "Include the saved pages as data URLs"),
			}),
		},
		{
			Name:        "history_get",
			Description: "Get one saved submission with its pages and full grading result.",
			InputSchema: object([]string{"id"}, map[string]interface{}{
				"id": prop("string", "Submission id"),
			}),
		},
		{
			Name:        "history_delete",
			Description: "Delete a saved submission.",
			InputSchema: object([]string{"id"}, map[string]interface{}{
				"id": prop("string", "Submission id"),
			}),
		},
		{
			Name:        "history_export_csv",
			Description: "Export saved submissions as CSV (No, Date, Class, Score, Max Score, Summary).",
			InputSchema: object(nil, map[string]interface{}{
				"class_name": classNameProp,
				"path":       prop("string", "Write the CSV to this file instead of returning it"),
			}),
		},
		{
			Name:        "rubric_save",
			Description: "Save an answer key for reuse.",
			InputSchema: object([]string{"name"}, map[string]interface{}{
				"id":              prop("string", "Existing rubric to replace"),
				"name":            prop("string", "Rubric name"),
				"answer_key_text": prop("string", "Answer key text"),
			}),
		},
		{
			Name:        "rubric_list",
			Description: "List saved rubrics.",
			InputSchema: object(nil, map[string]interface{}{}),
		},
		{
			Name:        "rubric_delete",
			Description: "Delete a saved rubric.",
			InputSchema: object([]string{"id"}, map[string]interface{}{
				"id": prop("string", "Rubric id"),
			}),
		},
		{
			Name:        "class_list",
			Description: "List known class names.",
			InputSchema: object(nil, map[string]interface{}{}),
		},
		{
			Name:        "class_add",
			Description: "Register a class name.",
			InputSchema: object([]string{"name"}, map[string]interface{}{
				"name": prop("string", "Class name"),
			}),
		},
		{
			Name:        "submission_reset",
			Description: "Discard the current pages, result and annotations.",
			InputSchema: object(nil, map[string]interface{}{}),
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
