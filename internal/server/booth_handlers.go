package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"photobooth/internal/booth"
	"photobooth/internal/compose"
	"photobooth/internal/crop"
	"photobooth/internal/session"
)

var errBadRequest = errors.New("bad request")

// ModeRequest selects the booth mode.
type ModeRequest struct {
	Mode string `json:"mode"`
}

// DisplayRequest reports the on-screen size of the image being cropped.
type DisplayRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ZoomRequest resizes the crop box.
type ZoomRequest struct {
	Zoom float64 `json:"zoom"`
}

// DragRequest is one pointer event on the crop box. Phase is start, move or end.
type DragRequest struct {
	Phase string  `json:"phase"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// CustomizeRequest sets the strip options.
type CustomizeRequest struct {
	Background  string `json:"background"`
	Frame       string `json:"frame"`
	Note        string `json:"note"`
	IncludeDate bool   `json:"date"`
}

// CropResponse describes the crop box of the image being edited.
type CropResponse struct {
	Index         int     `json:"index"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	Zoom          float64 `json:"zoom"`
	DisplayWidth  float64 `json:"displayWidth"`
	DisplayHeight float64 `json:"displayHeight"`
	NaturalWidth  int     `json:"naturalWidth"`
	NaturalHeight int     `json:"naturalHeight"`
	Dragging      bool    `json:"dragging"`
}

func newCropResponse(idx int, st crop.State) CropResponse {
	return CropResponse{
		Index:         idx,
		X:             st.Box.X,
		Y:             st.Box.Y,
		Width:         st.Box.W,
		Height:        st.Box.H,
		Zoom:          st.Zoom,
		DisplayWidth:  st.DisplayW,
		DisplayHeight: st.DisplayH,
		NaturalWidth:  st.NaturalW,
		NaturalHeight: st.NaturalH,
		Dragging:      st.Drag == crop.Dragging,
	}
}

// StripResponse describes a generated strip.
type StripResponse struct {
	ID       string       `json:"id"`
	Filename string       `json:"filename"`
	Mode     session.Mode `json:"mode"`
	Width    int          `json:"width"`
	Height   int          `json:"height"`
	Size     int          `json:"size"`
}

// setupBoothRoutes adds the kiosk action endpoints
func (s *Server) setupBoothRoutes(r *mux.Router) {
	r.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/api/mode", s.handleMode).Methods("POST")
	r.HandleFunc("/api/camera", s.action(s.booth.StartCamera)).Methods("POST")
	r.HandleFunc("/api/camera", s.action(s.booth.CancelCamera)).Methods("DELETE")
	r.HandleFunc("/api/upload-choice", s.action(s.booth.ChooseUpload)).Methods("POST")
	r.HandleFunc("/api/upload", s.handleUpload).Methods("POST")
	r.HandleFunc("/api/upload", s.action(func() error { s.booth.CancelUpload(); return nil })).Methods("DELETE")

	// Crop editor
	r.HandleFunc("/api/crop", s.handleCropState).Methods("GET")
	r.HandleFunc("/api/crop/display", s.handleDisplay).Methods("POST")
	r.HandleFunc("/api/crop/zoom", s.handleZoom).Methods("POST")
	r.HandleFunc("/api/crop/drag", s.handleDrag).Methods("POST")
	r.HandleFunc("/api/crop/confirm", s.action(s.booth.ConfirmCrop)).Methods("POST")

	r.HandleFunc("/api/proceed", s.action(s.booth.Proceed)).Methods("POST")
	r.HandleFunc("/api/customize", s.handleCustomize).Methods("POST")
	r.HandleFunc("/api/generate", s.handleGenerate).Methods("POST")
	r.HandleFunc("/api/download", s.handleDownload).Methods("GET")
	r.HandleFunc("/api/home", s.action(func() error { s.booth.GoHome(); return nil })).Methods("POST")
}

// action adapts a booth method to a handler answering with the new status.
func (s *Server) action(fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.booth.Status())
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.booth.Status())
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.action(func() error { return s.booth.SelectMode(session.Mode(req.Mode)) })(w, r)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	uploads, err := readUploads(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.action(func() error { return s.booth.HandleUpload(uploads) })(w, r)
}

func (s *Server) handleCropState(w http.ResponseWriter, r *http.Request) {
	st, idx, err := s.booth.CropState()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCropResponse(idx, st))
}

func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	var req DisplayRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.cropAction(w, r, func() error { return s.booth.SetDisplaySize(req.Width, req.Height) })
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	var req ZoomRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.cropAction(w, r, func() error { return s.booth.Zoom(req.Zoom) })
}

func (s *Server) handleDrag(w http.ResponseWriter, r *http.Request) {
	var req DragRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.cropAction(w, r, func() error {
		switch req.Phase {
		case "start":
			return s.booth.DragStart(req.X, req.Y)
		case "move":
			return s.booth.DragMove(req.X, req.Y)
		case "end":
			return s.booth.DragEnd()
		default:
			return fmt.Errorf("%w: drag phase %q", errBadRequest, req.Phase)
		}
	})
}

// cropAction runs fn and answers with the updated crop box.
func (s *Server) cropAction(w http.ResponseWriter, r *http.Request, fn func() error) {
	if err := fn(); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleCropState(w, r)
}

func (s *Server) handleCustomize(w http.ResponseWriter, r *http.Request) {
	var req CustomizeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	err := s.booth.Customize(compose.Options{
		Background:  req.Background,
		Frame:       req.Frame,
		Note:        req.Note,
		IncludeDate: req.IncludeDate,
	})
	if err != nil {
		if !errors.Is(err, booth.ErrWrongPhase) {
			err = fmt.Errorf("%w: %v", errBadRequest, err)
		}
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.booth.Status())
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	art, err := s.booth.Generate(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StripResponse{
		ID:       art.ID,
		Filename: art.Filename,
		Mode:     art.Mode,
		Width:    art.Width,
		Height:   art.Height,
		Size:     len(art.Data),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	art, err := s.booth.Download()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJPEG(w, art.Filename, art.Data)
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// readUploads reads every file of the "photos" multipart field in order.
func readUploads(w http.ResponseWriter, r *http.Request) ([]crop.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	var uploads []crop.Upload
	for _, fh := range r.MultipartForm.File["photos"] {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, crop.Upload{Name: fh.Filename, Data: data})
	}
	return uploads, nil
}
