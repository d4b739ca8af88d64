package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/meridianedu/assess-backend/internal/assessment"
	"github.com/meridianedu/assess-backend/internal/config"
	"github.com/meridianedu/assess-backend/internal/database"
	"github.com/meridianedu/assess-backend/internal/logger"
	"github.com/meridianedu/assess-backend/internal/model"
	"github.com/meridianedu/assess-backend/internal/repository"
	"github.com/meridianedu/assess-backend/internal/service"
	"golang.org/x/crypto/bcrypt"
)

// Seeds a demo instructor, a cohort of students and one published
// four-paper assignment so a fresh install has something to click on.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	studentRepo := repository.NewStudentRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)

	studentService := service.NewStudentService(studentRepo)
	assignmentService := service.NewAssignmentService(assignmentRepo, rdb, log)

	fmt.Println("=== Seeding Demo Data ===")

	// ─── Demo Instructor ──────────────────────────────────────────────
	var authorID int
	existing, err := adminRepo.GetByEmail(ctx, "instructor@example.com")
	if err != nil {
		if err != pgx.ErrNoRows {
			log.Fatal().Err(err).Msg("Failed to check existing instructor")
		}

		hashed, hashErr := bcrypt.GenerateFromPassword([]byte("instructor123"), cfg.BcryptCost)
		if hashErr != nil {
			log.Fatal().Err(hashErr).Msg("Failed to hash instructor password")
		}

		permissions := make([]string, 0, len(model.AllPermissions))
		for _, p := range model.AllPermissions {
			permissions = append(permissions, string(p))
		}

		instructor := &model.Admin{
			Email:        "instructor@example.com",
			Name:         "Demo Instructor",
			PasswordHash: string(hashed),
			Permissions:  permissions,
		}
		if err := adminRepo.Create(ctx, instructor); err != nil {
			log.Fatal().Err(err).Msg("Failed to create instructor")
		}
		authorID = instructor.ID
		fmt.Printf("Created instructor with ID: %d\n", authorID)
	} else {
		authorID = existing.ID
		fmt.Printf("Found existing instructor with ID: %d\n", authorID)
	}

	// ─── Demo Students ────────────────────────────────────────────────
	names := []string{
		"Alice Tan", "Ben Lim", "Clara Ong", "Daniel Lee", "Emma Wong",
		"Farah Rahman", "Gavin Chua", "Hui Min Ng", "Ivan Koh", "Jasmine Teo",
	}

	successCount := 0
	for i, name := range names {
		student := &model.Student{
			Email:        fmt.Sprintf("student%d@example.com", i+1),
			Name:         name,
			Cohort:       "2026A",
			PasswordHash: "student123",
		}

		if err := studentService.Create(ctx, student); err != nil {
			fmt.Printf("Error creating student %s: %v\n", student.Email, err)
		} else {
			successCount++
		}
	}
	fmt.Printf("Seeded %d/%d students.\n", successCount, len(names))

	// ─── Demo Assignment ──────────────────────────────────────────────
	questions, err := json.Marshal(demoDefinition())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to marshal demo questions")
	}

	assignment := &model.Assignment{
		Title:           "English Placement Exam (Demo)",
		Description:     "A four-paper demo covering writing, reading, listening and oral.",
		AuthorID:        authorID,
		Type:            model.AssignmentTypeExam,
		DurationMinutes: 60,
		Questions:       questions,
	}

	if err := assignmentService.Create(ctx, assignment); err != nil {
		log.Fatal().Err(err).Msg("Failed to create demo assignment")
	}
	if err := assignmentService.Publish(ctx, assignment.ID, authorID); err != nil {
		log.Fatal().Err(err).Msg("Failed to publish demo assignment")
	}

	fmt.Printf("\nSeed completed! Demo assignment: %s\n", assignment.ID)
}

func demoDefinition() *assessment.Definition {
	return &assessment.Definition{
		Paper1: &assessment.WritingPaper{
			Editing: []assessment.EditingItem{
				{ID: "e1", Text: "She don't like coffee in the morning."},
				{ID: "e2", Text: "The childrens are playing at the park yesterday."},
				{ID: "e3", Text: "He go to school by bus every days."},
			},
			Essay: &assessment.EssayPrompt{
				Prompt: "Describe a place you would like to visit and explain why.",
			},
		},
		Paper2: &assessment.ReadingPaper{
			Passage: "The honeybee is one of the most studied insects in the world. " +
				"A single colony can hold up to sixty thousand bees, each with a " +
				"clearly defined role.",
			Questions: []assessment.MCQQuestion{
				{
					ID:           "r1",
					QuestionText: "How many bees can a single colony hold?",
					Options:      []string{"Six hundred", "Six thousand", "Sixty thousand", "Six million"},
				},
				{
					ID:           "r2",
					QuestionText: "According to the passage, each bee has a:",
					Options:      []string{"Unique name", "Defined role", "Private cell", "Short memory"},
				},
			},
		},
		Paper3: &assessment.ListeningPaper{
			AudioURL: "demo_listening.mp3",
			Questions: []assessment.MCQQuestion{
				{
					ID:           "l1",
					QuestionText: "Where does the conversation take place?",
					Options:      []string{"A library", "A train station", "A restaurant", "A hospital"},
				},
			},
		},
		Paper4: &assessment.OralPaper{
			Passage:      "Reading widely is one of the simplest ways to improve both vocabulary and fluency.",
			Instructions: "Read the passage aloud clearly, then record your response.",
		},
	}
}
