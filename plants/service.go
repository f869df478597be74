package plants

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Caller performs one authenticated RPC. *auth.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, operation string, input, out any) error
}

// Service is a typed facade over the plant RPC operations.
type Service struct {
	rpc     Caller
	uploads *http.Client
}

// NewService creates a Service. Photo bytes go to presigned URLs through
// http.DefaultClient unless WithUploadClient is used.
func NewService(rpc Caller) *Service {
	return &Service{rpc: rpc, uploads: http.DefaultClient}
}

// WithUploadClient sets the client used for presigned uploads.
func (s *Service) WithUploadClient(client *http.Client) *Service {
	if client != nil {
		s.uploads = client
	}
	return s
}

func (s *Service) GetAllPlants(ctx context.Context) ([]Plant, error) {
	var out GetAllPlantsOutput
	if err := s.rpc.Call(ctx, OpGetAllPlants, nil, &out); err != nil {
		return nil, err
	}
	return out.Plants, nil
}

func (s *Service) GetPlant(ctx context.Context, plantID string) (*GetPlantOutput, error) {
	var out GetPlantOutput
	if err := s.rpc.Call(ctx, OpGetPlant, PlantRef{PlantID: plantID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PutPlant validates plant locally before sending it.
func (s *Service) PutPlant(ctx context.Context, plant Plant) error {
	if err := plant.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid plant").
			WithMetadata(map[string]any{"plant_id": plant.ID})
	}
	return s.rpc.Call(ctx, OpPutPlant, PutPlantInput{Plant: plant}, nil)
}

func (s *Service) DeletePlant(ctx context.Context, plantID string) error {
	return s.rpc.Call(ctx, OpDeletePlant, PlantRef{PlantID: plantID}, nil)
}

// UploadPhoto requests a presigned upload, PUTs data to it and attaches
// the uploaded object to the plant.
func (s *Service) UploadPhoto(ctx context.Context, plantID string, data []byte, contentType string, rotation *int) (Photo, error) {
	var upload PresignedUpload
	if err := s.rpc.Call(ctx, OpRequestPresignedUpload, nil, &upload); err != nil {
		return Photo{}, err
	}

	if err := s.put(ctx, upload.PresignedURL, data, contentType); err != nil {
		return Photo{}, err
	}

	var out UploadPhotoOutput
	in := UploadPhotoInput{
		PlantID:  plantID,
		Photo:    UploadedPhoto{Key: upload.Key},
		Rotation: rotation,
	}
	if err := s.rpc.Call(ctx, OpUploadPhoto, in, &out); err != nil {
		return Photo{}, err
	}
	return Photo{ID: out.PhotoID, ModifyDate: out.ModifyDate}, nil
}

func (s *Service) DeletePhoto(ctx context.Context, plantID, photoID string) error {
	return s.rpc.Call(ctx, OpDeletePhoto, DeletePhotoInput{PlantID: plantID, PhotoID: photoID}, nil)
}

func (s *Service) put(ctx context.Context, url string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid presigned url")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := s.uploads.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "photo upload failed")
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return goerrors.New("photo upload rejected", goerrors.CategoryOperation).
			WithCode(res.StatusCode).
			WithMetadata(map[string]any{
				"status": res.StatusCode,
				"body":   strings.TrimSpace(string(body)),
			})
	}
	return nil
}
