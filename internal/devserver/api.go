package devserver

import (
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-plantauth/middleware/sigv4ware"
	"github.com/goliatone/go-plantauth/plants"
	"github.com/goliatone/go-plantauth/sigv4"
	"github.com/google/uuid"
)

// UploadTTL bounds how long a presigned upload URL stays valid.
const UploadTTL = 15 * time.Minute

func forbidden(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"Message": message})
}

func rpcFailure(status int, message string) error {
	return fiber.NewError(status, message)
}

// handleError renders handler errors in the RPC error shape.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "internal error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
		message = fiberErr.Message
	} else {
		s.logger.Error("handler failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// callerKey names the fiber local holding the caller's identity id.
const callerKey = "caller"

// rejectUnsigned renders signature failures the way the hosted API does.
func (s *Server) rejectUnsigned(c *fiber.Ctx, err error) error {
	s.logger.Warn("rejected unsigned or mis-signed request", "path", c.Path(), "error", err)
	return forbidden(c, sigv4ware.Message(err))
}

// checkIssued binds a verified signature to the credentials it was issued
// with and refuses them once they expire.
func (s *Server) checkIssued(c *fiber.Ctx, result *sigv4.Result) error {
	issued, ok := s.issuedFor(result.AccessKeyID)
	if !ok {
		return fiber.NewError(fiber.StatusForbidden, "unknown access key")
	}
	if !s.now().Before(issued.expiresAt) {
		return fiber.NewError(fiber.StatusForbidden, "The security token included in the request is expired")
	}
	c.Locals(callerKey, issued.identityID)
	return nil
}

func (s *Server) handleAPI(c *fiber.Ctx) error {
	caller, _ := c.Locals(callerKey).(string)
	operation := c.Params("operation")
	s.logger.Debug("api call", "operation", operation, "identity_id", caller)

	switch operation {
	case plants.OpGetAllPlants:
		return c.JSON(plants.GetAllPlantsOutput{Plants: s.store.All()})
	case plants.OpGetPlant:
		return s.getPlant(c, caller)
	case plants.OpPutPlant:
		return s.putPlant(c)
	case plants.OpDeletePlant:
		return s.deletePlant(c)
	case plants.OpRequestPresignedUpload:
		return s.requestPresignedUpload(c)
	case plants.OpUploadPhoto:
		return s.uploadPhoto(c)
	case plants.OpDeletePhoto:
		return s.deletePhoto(c)
	}
	return rpcFailure(fiber.StatusNotFound, "unknown operation "+operation)
}

func bindInput(c *fiber.Ctx, in any) error {
	body := c.Body()
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, in); err != nil {
		return rpcFailure(fiber.StatusBadRequest, "invalid JSON input: "+err.Error())
	}
	return nil
}

func (s *Server) getPlant(c *fiber.Ctx, caller string) error {
	var in plants.PlantRef
	if err := bindInput(c, &in); err != nil {
		return err
	}
	if in.PlantID == "" {
		return rpcFailure(fiber.StatusBadRequest, "plantId is required")
	}

	plant, prev, next := s.store.Get(in.PlantID)
	return c.JSON(plants.GetPlantOutput{
		PlantID: in.PlantID,
		Plant:   plant,
		Next:    next,
		Prev:    prev,
		Caller:  caller,
	})
}

func (s *Server) putPlant(c *fiber.Ctx) error {
	var in plants.PutPlantInput
	if err := bindInput(c, &in); err != nil {
		return err
	}
	if err := in.Plant.Validate(); err != nil {
		return rpcFailure(fiber.StatusBadRequest, err.Error())
	}

	s.store.Put(in.Plant)
	return c.JSON(fiber.Map{})
}

func (s *Server) deletePlant(c *fiber.Ctx) error {
	var in plants.PlantRef
	if err := bindInput(c, &in); err != nil {
		return err
	}
	if !s.store.Delete(in.PlantID) {
		return rpcFailure(fiber.StatusNotFound, "no plant "+in.PlantID)
	}
	return c.JSON(fiber.Map{})
}

func (s *Server) uploadSignature(key string, expires int64) string {
	return sigv4.Signature(s.uploadKey, key+"\n"+strconv.FormatInt(expires, 10))
}

func (s *Server) requestPresignedUpload(c *fiber.Ctx) error {
	key := uuid.NewString()
	expires := s.now().Add(UploadTTL).Unix()

	query := url.Values{}
	query.Set("expires", strconv.FormatInt(expires, 10))
	query.Set("signature", s.uploadSignature(key, expires))

	return c.JSON(plants.PresignedUpload{
		Key:          key,
		PresignedURL: c.BaseURL() + "/uploads/" + key + "?" + query.Encode(),
	})
}

func (s *Server) handleUpload(c *fiber.Ctx) error {
	key := c.Params("key")
	expires, err := strconv.ParseInt(c.Query("expires"), 10, 64)
	if err != nil || c.Query("signature") != s.uploadSignature(key, expires) {
		return c.Status(fiber.StatusForbidden).SendString("invalid upload signature")
	}
	if s.now().Unix() > expires {
		return c.Status(fiber.StatusForbidden).SendString("upload url expired")
	}

	s.store.SaveUpload(key, c.Body())
	return c.SendStatus(fiber.StatusOK)
}

func (s *Server) uploadPhoto(c *fiber.Ctx) error {
	var in plants.UploadPhotoInput
	if err := bindInput(c, &in); err != nil {
		return err
	}

	photo := plants.Photo{
		ID:         uuid.NewString(),
		ModifyDate: s.now().UTC().Format(time.RFC3339),
	}
	found, uploaded := s.store.AttachPhoto(in.PlantID, in.Photo.Key, photo)
	switch {
	case !found:
		return rpcFailure(fiber.StatusNotFound, "no plant "+in.PlantID)
	case !uploaded:
		return rpcFailure(fiber.StatusBadRequest, "nothing uploaded under "+in.Photo.Key)
	}

	return c.JSON(plants.UploadPhotoOutput{PhotoID: photo.ID, ModifyDate: photo.ModifyDate})
}

func (s *Server) deletePhoto(c *fiber.Ctx) error {
	var in plants.DeletePhotoInput
	if err := bindInput(c, &in); err != nil {
		return err
	}
	if !s.store.DeletePhoto(in.PlantID, in.PhotoID) {
		return rpcFailure(fiber.StatusNotFound, "no photo "+in.PhotoID)
	}
	return c.JSON(fiber.Map{})
}
