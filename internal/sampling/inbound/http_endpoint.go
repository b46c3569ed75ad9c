package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/shandysiswandi/gosampling/internal/pkg/pkgerror"
	"github.com/shandysiswandi/gosampling/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
	"github.com/shandysiswandi/gosampling/internal/sampling/usecase"
)

const fallbackChunkLimit = 64 << 20

type HTTPEndpoint struct {
	uc       uc
	maxChunk int64
}

func (h *HTTPEndpoint) CreateUpload(ctx context.Context, r *http.Request) (any, error) {
	result, err := h.uc.NewUpload(ctx)
	if err != nil {
		return nil, err
	}

	return UploadResponse{UploadID: result.UploadID, ChunkSize: result.ChunkSize}, nil
}

func (h *HTTPEndpoint) PutChunk(ctx context.Context, r *http.Request) (any, error) {
	query := r.URL.Query()

	index, err := strconv.ParseInt(pkgrouter.GetParam(ctx, "index"), 10, 64)
	if err != nil || index < 0 {
		return nil, pkgerror.NewInvalidInput(errors.New("invalid chunk index"))
	}

	total, err := pkgrouter.QueryInt64(query, "total", 0)
	if err != nil {
		return nil, pkgerror.NewInvalidInput(err)
	}
	chunkSize, err := pkgrouter.QueryInt64(query, "chunk_size", 0)
	if err != nil {
		return nil, pkgerror.NewInvalidInput(err)
	}
	last, err := pkgrouter.QueryBool(query, "last", false)
	if err != nil {
		return nil, pkgerror.NewInvalidInput(err)
	}

	fileName := strings.TrimSpace(query.Get("filename"))
	if fileName == "" {
		return nil, pkgerror.NewInvalidInput(errors.New("filename is required"))
	}

	payload, err := h.readChunk(r, chunkSize)
	if err != nil {
		return nil, err
	}

	ack, err := h.uc.ApplyChunk(ctx, entity.UploadChunk{
		UploadID:    pkgrouter.GetParam(ctx, "upload_id"),
		Index:       index,
		TotalChunks: total,
		IsLast:      last,
		ChunkSize:   chunkSize,
		FileName:    fileName,
		Payload:     payload,
	})
	if err != nil {
		return nil, err
	}

	resp := ChunkResponse{
		UploadID:     ack.UploadID,
		Index:        ack.Index,
		BytesWritten: ack.BytesWritten,
		Skipped:      ack.Skipped,
		Completed:    ack.Completed,
	}
	if ack.Completed {
		resp.File = fileName
	}

	return resp, nil
}

// readChunk reads at most one byte past the limit so oversized payloads
// reach the assembler and are rejected there.
func (h *HTTPEndpoint) readChunk(r *http.Request, chunkSize int64) ([]byte, error) {
	if r.Body == nil {
		return nil, pkgerror.NewInvalidInput(errors.New("empty request body"))
	}

	limit := chunkSize
	if limit <= 0 {
		limit = h.maxChunk
	}
	if limit <= 0 {
		limit = fallbackChunkLimit
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, pkgerror.NewInvalidFormat()
	}

	return payload, nil
}

func (h *HTTPEndpoint) GetFile(ctx context.Context, r *http.Request) (any, error) {
	meta, err := h.uc.File(ctx, pkgrouter.GetParam(ctx, "name"))
	if err != nil {
		return nil, err
	}

	return toFileResponse(meta), nil
}

func (h *HTTPEndpoint) Validation(ctx context.Context, r *http.Request) (any, error) {
	report, err := h.uc.Validate(ctx, pkgrouter.GetParam(ctx, "name"), r.URL.Query().Get("delimiter"))
	if err != nil {
		return nil, err
	}

	return toValidationResponse(report), nil
}

func (h *HTTPEndpoint) Clean(ctx context.Context, r *http.Request) (any, error) {
	headers, err := pkgrouter.QueryBool(r.URL.Query(), "headers", true)
	if err != nil {
		return nil, pkgerror.NewInvalidInput(err)
	}

	result, err := h.uc.Clean(ctx, pkgrouter.GetParam(ctx, "name"), headers)
	if err != nil {
		return nil, err
	}

	return CleanResponse{
		Output:        result.Output,
		LinesWritten:  result.LinesWritten,
		DataLines:     result.DataLines,
		HeaderWritten: result.HeaderWritten,
	}, nil
}

func (h *HTTPEndpoint) StartIndex(ctx context.Context, r *http.Request) (any, error) {
	headers, err := pkgrouter.QueryBool(r.URL.Query(), "headers", true)
	if err != nil {
		return nil, pkgerror.NewInvalidInput(err)
	}

	started, err := h.uc.StartIndex(ctx, pkgrouter.GetParam(ctx, "name"), headers)
	if err != nil {
		return nil, err
	}

	return IndexStartedResponse{File: started.File, Status: started.Status}, nil
}

func (h *HTTPEndpoint) Progress(ctx context.Context, r *http.Request) (any, error) {
	return h.uc.Progress(ctx, pkgrouter.GetParam(ctx, "name"))
}

func (h *HTTPEndpoint) Sample(ctx context.Context, r *http.Request) (any, error) {
	var req SampleRequest
	if r.Body == nil {
		return nil, pkgerror.NewInvalidInput(errors.New("empty request body"))
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, pkgerror.NewInvalidFormat()
	}

	result, err := h.uc.Sample(ctx, entity.SampleRequest{
		File:            pkgrouter.GetParam(ctx, "name"),
		N:               req.N,
		Seed:            req.Seed,
		Start:           req.Start,
		End:             req.End,
		UseHeaders:      req.Headers,
		AllowDuplicates: req.Duplicates,
		Ordered:         req.Ordered,
		Delimiter:       req.Delimiter,
	})
	if err != nil {
		return nil, err
	}

	return toSampleResponse(result), nil
}

func (h *HTTPEndpoint) Runs(ctx context.Context, r *http.Request) (any, error) {
	query := r.URL.Query()
	page, pageSize, err := parsePagination(query.Get("page"), query.Get("page_size"))
	if err != nil {
		return nil, err
	}

	result, err := h.uc.Runs(ctx, pkgrouter.GetParam(ctx, "name"), page, pageSize)
	if err != nil {
		return nil, err
	}

	runs := make([]SampleRun, 0, len(result.Runs))
	for _, run := range result.Runs {
		runs = append(runs, SampleRun{
			RunID:      run.RunID,
			N:          run.Request.N,
			Seed:       run.Request.Seed,
			Start:      run.Request.Start,
			End:        run.Request.End,
			Headers:    run.Request.UseHeaders,
			Duplicates: run.Request.AllowDuplicates,
			Hash:       run.Hash,
			RowCount:   run.RowCount,
			CreatedAt:  run.CreatedAt,
		})
	}

	return RunsResponse{
		File:     result.File,
		Runs:     runs,
		page:     result.Page,
		pageSize: result.PageSize,
		total:    result.Total,
	}, nil
}

func (h *HTTPEndpoint) Reservoir(ctx context.Context, r *http.Request) (any, error) {
	query := r.URL.Query()

	n, err := pkgrouter.QueryInt64(query, "n", 0)
	if err != nil {
		return nil, pkgerror.NewInvalidInput(err)
	}
	seed, err := parseSeed(query.Get("seed"))
	if err != nil {
		return nil, err
	}
	headers, err := pkgrouter.QueryBool(query, "headers", false)
	if err != nil {
		return nil, pkgerror.NewInvalidInput(err)
	}

	reader, cleanup, err := extractCSVReader(r)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	result, err := h.uc.Reservoir(ctx, reader, usecase.ReservoirInput{
		N:          n,
		Seed:       seed,
		UseHeaders: headers,
		Delimiter:  query.Get("delimiter"),
	})
	if err != nil {
		return nil, err
	}

	return toSampleResponse(result), nil
}

func parseSeed(raw string) (uint64, error) {
	if raw == "" {
		return 0, nil
	}

	seed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, pkgerror.NewInvalidInput(errors.New("invalid seed"))
	}

	return seed, nil
}

func parsePagination(pageRaw, sizeRaw string) (int, int, error) {
	page := 1
	pageSize := 10

	if pageRaw != "" {
		value, err := strconv.Atoi(pageRaw)
		if err != nil || value < 1 {
			return 0, 0, pkgerror.NewInvalidInput(errors.New("invalid page"))
		}
		page = value
	}

	if sizeRaw != "" {
		value, err := strconv.Atoi(sizeRaw)
		if err != nil || value < 1 {
			return 0, 0, pkgerror.NewInvalidInput(errors.New("invalid page_size"))
		}
		if value > 100 {
			value = 100
		}
		pageSize = value
	}

	return page, pageSize, nil
}

func toFileResponse(meta entity.FileMeta) FileResponse {
	resp := FileResponse{
		Name:       meta.Name,
		Size:       meta.Size,
		ModTime:    meta.ModTime,
		Status:     meta.Status,
		Delimiter:  meta.Delimiter,
		HasHeaders: meta.HasHeaders,
		Error:      meta.Err,
		CleanName:  meta.CleanName,
	}

	if meta.Validation != nil {
		v := toValidationResponse(*meta.Validation)
		resp.Validation = &v
	}
	if meta.Index != nil {
		resp.Index = &IndexResponse{
			Lines:           meta.Index.Lines,
			UsableLines:     meta.Index.UsableLines,
			DataRows:        meta.Index.DataRows,
			DataStartOffset: meta.Index.DataStartOffset,
			Reused:          meta.Index.Reused,
		}
	}

	return resp
}

func toValidationResponse(report entity.ValidationReport) ValidationResponse {
	positions := report.EmptyPositions
	if positions == nil {
		positions = []int64{}
	}

	return ValidationResponse{
		TotalLines:     report.TotalLines,
		EmptyLines:     report.EmptyLines,
		EmptyPositions: positions,
		Delimiter:      report.Delimiter,
		HeaderDetected: report.HeaderDetected,
		Header:         report.Header,
	}
}

func toSampleResponse(result entity.SampleResult) SampleResponse {
	rows := result.Rows
	if rows == nil {
		rows = []entity.Row{}
	}

	return SampleResponse{
		RunID:       result.RunID,
		File:        result.File,
		Rows:        rows,
		Columns:     result.Columns,
		Delimiter:   result.Delimiter,
		Start:       result.Start,
		End:         result.End,
		UsableLines: result.UsableLines,
		DataRows:    result.DataRows,
		Hash:        result.Hash,
		Signature:   result.Signature,
	}
}

func extractCSVReader(r *http.Request) (io.ReadCloser, func(), error) {
	contentType := r.Header.Get("Content-Type")
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil && strings.EqualFold(mediaType, "multipart/form-data") {
			return extractMultipartFile(r)
		}
	}

	if r.Body == nil || r.Body == http.NoBody {
		return nil, func() {}, pkgerror.NewInvalidInput(errors.New("empty request body"))
	}

	return r.Body, func() {}, nil
}

func extractMultipartFile(r *http.Request) (io.ReadCloser, func(), error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, func() {}, pkgerror.NewInvalidFormat()
	}

	for {
		part, err := reader.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, func() {}, pkgerror.NewInvalidInput(errors.New("file part is required"))
			}
			return nil, func() {}, pkgerror.NewInvalidFormat()
		}

		if part.FormName() == "file" {
			return part, func() { _ = part.Close() }, nil
		}
		_ = part.Close()
	}
}
