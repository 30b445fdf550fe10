package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"dataforge-api/config"
	"dataforge-api/internal/dataset"
	"dataforge-api/internal/logs"
	"dataforge-api/internal/pipeline"
	"dataforge-api/internal/storage"
	"dataforge-api/internal/version"
)

// orphanSweepEvery is how often stranded blobs are reaped. A blob is stranded
// when a crash hits between persist and rollback; it is only deleted once it
// is old enough that no in-flight create can still claim it.
const (
	orphanSweepEvery = 6 * time.Hour
	orphanMinAge     = 24 * time.Hour
)

func main() {
	cfg := config.LoadConfig()

	dsn := "host=" + cfg.DBHost +
		" user=" + cfg.DBUser +
		" password=" + cfg.DBPassword +
		" dbname=" + cfg.DBName +
		" port=" + cfg.DBPort +
		" sslmode=disable"

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	ctx := context.Background()
	store, err := storage.NewGCSStore(ctx, cfg.BucketName)
	if err != nil {
		log.Fatal("Failed to create storage client:", err)
	}
	defer store.Close()

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	logService := &logs.LogService{DB: db}
	logs.RegisterRoutes(r, logService)

	datasetService := &dataset.DatasetService{DB: db}
	dataset.RegisterRoutes(r, datasetService, logService)

	versionService := version.NewVersionService(db, store, time.Duration(cfg.StorageTimeoutSec)*time.Second)
	version.RegisterRoutes(r, versionService, logService)

	pipelineService := &pipeline.PipelineService{DB: db}
	pipeline.RegisterRoutes(r, pipelineService)

	go runOrphanSweeper(ctx, db, store)

	// --- Cloud Run expects plain HTTP, on $PORT, bind to 0.0.0.0 ---
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Starting server on 0.0.0.0:%s ...", port)
	log.Fatal(r.Run("0.0.0.0:" + port))
}

func runOrphanSweeper(ctx context.Context, db *gorm.DB, store storage.ObjectStore) {
	ticker := time.NewTicker(orphanSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		live := func(ref string) bool {
			var n int64
			if err := db.Model(&version.VersionFile{}).Where("object_ref = ?", ref).Count(&n).Error; err != nil {
				// Keep the blob when in doubt.
				return true
			}
			return n > 0
		}

		removed, err := storage.SweepOrphans(ctx, store, "datasets/", orphanMinAge, live)
		if err != nil {
			log.Printf("WARN: orphan sweep failed: %v", err)
			continue
		}
		if removed > 0 {
			log.Printf("orphan sweep removed %d blob(s)", removed)
		}
	}
}
