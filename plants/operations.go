package plants

// Operation names accepted under /api/.
const (
	OpGetAllPlants           = "getAllPlants"
	OpGetPlant               = "getPlant"
	OpPutPlant               = "putPlant"
	OpDeletePlant            = "deletePlant"
	OpRequestPresignedUpload = "requestPresignedUpload"
	OpUploadPhoto            = "uploadPhoto"
	OpDeletePhoto            = "deletePhoto"
)

type GetAllPlantsOutput struct {
	Plants []Plant `json:"plants"`
}

type PlantRef struct {
	PlantID string `json:"plantId"`
}

// GetPlantOutput is one plant plus its neighbours in id order. Caller is
// the identity id that signed the request.
type GetPlantOutput struct {
	PlantID string `json:"plantId"`
	Plant   *Plant `json:"plant,omitempty"`
	Next    string `json:"next,omitempty"`
	Prev    string `json:"prev,omitempty"`
	Caller  string `json:"caller"`
}

type PutPlantInput struct {
	Plant Plant `json:"plant"`
}

type PresignedUpload struct {
	Key          string `json:"key"`
	PresignedURL string `json:"presignedUrl"`
}

type UploadedPhoto struct {
	Key string `json:"key"`
}

type UploadPhotoInput struct {
	PlantID  string        `json:"plantId"`
	Photo    UploadedPhoto `json:"photo"`
	Rotation *int          `json:"rotation,omitempty"`
}

type UploadPhotoOutput struct {
	PhotoID    string `json:"photoId"`
	ModifyDate string `json:"modifyDate"`
}

type DeletePhotoInput struct {
	PlantID string `json:"plantId"`
	PhotoID string `json:"photoId"`
}
