// Package musicmodule owns persisted songs: the gorm-backed store plus a thin
// query surface for inspection.
package musicmodule

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"melodyhub/internal/database"
	"melodyhub/internal/modules/modulemanager"
)

const (
	ModuleID   = "system.music"
	ModuleName = "Music Library"
)

// Module exposes the song store and its query routes.
type Module struct {
	id   string
	name string
	core bool
	db   *gorm.DB

	store *SongStore
}

// Register registers this module with the module system.
func Register() {
	modulemanager.Register(&Module{
		id:   ModuleID,
		name: ModuleName,
		core: true,
	})
}

func (m *Module) ID() string   { return m.id }
func (m *Module) Name() string { return m.name }
func (m *Module) Core() bool   { return m.core }

// Migrate creates the song table.
func (m *Module) Migrate(db *gorm.DB) error {
	m.db = db
	return db.AutoMigrate(&database.Song{})
}

// Init builds the song store.
func (m *Module) Init() error {
	if m.db == nil {
		m.db = database.GetDB()
	}
	m.store = NewSongStore(m.db)
	return nil
}

// Store returns the song store for other modules.
func (m *Module) Store() *SongStore {
	return m.store
}

// GetStore returns the registered music module's store, if loaded.
func GetStore() *SongStore {
	mod, ok := modulemanager.GetModule(ModuleID)
	if !ok {
		return nil
	}
	music, ok := mod.(*Module)
	if !ok {
		return nil
	}
	return music.store
}

// RegisterRoutes registers the song query routes.
func (m *Module) RegisterRoutes(router *gin.Engine) {
	songs := router.Group("/songs")
	songs.GET("", m.listSongs)
	songs.GET("/:id", m.getSong)
}

func (m *Module) listSongs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 1000 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	var (
		songs []database.Song
		total int64
	)
	m.db.Model(&database.Song{}).Count(&total)
	result := m.db.Limit(limit).Offset(offset).Order("created_at DESC").Find(&songs)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"songs":  songs,
		"total":  total,
		"count":  len(songs),
		"limit":  limit,
		"offset": offset,
	})
}

func (m *Module) getSong(c *gin.Context) {
	song, err := m.store.FindOne("id = ?", c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if song == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "song not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"song": song})
}
