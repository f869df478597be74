package devserver

import (
	"sort"
	"sync"

	"github.com/goliatone/go-plantauth/plants"
)

// PlantStore is the in-memory catalogue behind /api/.
type PlantStore struct {
	mu      sync.RWMutex
	plants  map[string]plants.Plant
	uploads map[string][]byte
}

func NewPlantStore() *PlantStore {
	return &PlantStore{
		plants:  map[string]plants.Plant{},
		uploads: map[string][]byte{},
	}
}

// All returns every plant ordered by id.
func (s *PlantStore) All() []plants.Plant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]plants.Plant, 0, len(s.plants))
	for _, id := range s.sortedIDs() {
		out = append(out, clonePlant(s.plants[id]))
	}
	return out
}

// Get returns the plant with its neighbours in id order.
func (s *PlantStore) Get(id string) (plant *plants.Plant, prev, next string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.sortedIDs()
	i := sort.SearchStrings(ids, id)
	if i < len(ids) && ids[i] == id {
		p := clonePlant(s.plants[id])
		plant = &p
		if i+1 < len(ids) {
			next = ids[i+1]
		}
	} else if i < len(ids) {
		next = ids[i]
	}
	if i > 0 {
		prev = ids[i-1]
	}
	return plant, prev, next
}

// Put stores plant, keeping photos already attached when plant has none.
func (s *PlantStore) Put(plant plants.Plant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.plants[plant.ID]; ok && plant.Photos == nil {
		plant.Photos = existing.Photos
	}
	s.plants[plant.ID] = clonePlant(plant)
}

func (s *PlantStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.plants[id]
	delete(s.plants, id)
	return ok
}

// SaveUpload records the bytes written to a presigned key.
func (s *PlantStore) SaveUpload(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[key] = append([]byte(nil), data...)
}

// Upload returns the bytes stored under key.
func (s *PlantStore) Upload(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.uploads[key]
	return data, ok
}

// AttachPhoto consumes the upload under key and appends photo to the plant.
func (s *PlantStore) AttachPhoto(plantID, key string, photo plants.Photo) (ok bool, uploaded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plant, ok := s.plants[plantID]
	if !ok {
		return false, false
	}
	data, uploaded := s.uploads[key]
	if !uploaded {
		return true, false
	}

	delete(s.uploads, key)
	s.uploads[photo.ID] = data
	plant.Photos = append(plant.Photos, photo)
	s.plants[plantID] = plant
	return true, true
}

// DeletePhoto removes photoID from the plant.
func (s *PlantStore) DeletePhoto(plantID, photoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	plant, ok := s.plants[plantID]
	if !ok {
		return false
	}
	for i, photo := range plant.Photos {
		if photo.ID == photoID {
			plant.Photos = append(plant.Photos[:i:i], plant.Photos[i+1:]...)
			s.plants[plantID] = plant
			delete(s.uploads, photoID)
			return true
		}
	}
	return false
}

func (s *PlantStore) sortedIDs() []string {
	ids := make([]string, 0, len(s.plants))
	for id := range s.plants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func clonePlant(p plants.Plant) plants.Plant {
	out := p
	out.Photos = append([]plants.Photo{}, p.Photos...)
	out.Links = append([]plants.Link{}, p.Links...)
	out.Tags = make(map[plants.TagKey]string, len(p.Tags))
	for k, v := range p.Tags {
		out.Tags[k] = v
	}
	return out
}
