package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/exstem-assess/internal/config"
	"github.com/stemsi/exstem-assess/internal/database"
	"github.com/stemsi/exstem-assess/internal/logger"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/repository"
	"github.com/stemsi/exstem-assess/internal/service"
)

// seedAdminID attributes seeded records in the logs; no admin row is needed.
const seedAdminID = 0

func main() {
	var students int
	var password string
	flag.IntVar(&students, "students", 20, "Number of approved students to create")
	flag.StringVar(&password, "password", "stemsijaya", "Password of every seeded student")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	hasher := service.NewAuthService(cfg, nil)
	studentRepo := repository.NewStudentRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	studentService := service.NewStudentService(studentRepo, hasher)
	questionService := service.NewQuestionService(repository.NewQuestionRepository(pool))
	examService := service.NewExamService(examRepo, repository.NewExamSessionRepository(pool), repository.NewRetakeRepository(pool))

	admin := model.AdminPrincipal(seedAdminID, model.AllDomainsScope())

	fmt.Printf("=== Seeding %d Students ===\n", students)
	created := 0
	for i := 1; i <= students; i++ {
		s, err := studentService.Register(ctx, model.RegisterStudentRequest{
			Username: fmt.Sprintf("student%02d", i),
			Email:    fmt.Sprintf("student%02d@exstem.local", i),
			Password: password,
		})
		if errors.Is(err, service.ErrDuplicateUser) {
			continue
		}
		if err != nil {
			log.Fatal().Err(err).Int("index", i).Msg("Failed to register student")
		}
		if err := studentService.Approve(ctx, admin, s.ID); err != nil {
			log.Fatal().Err(err).Int("student_id", s.ID).Msg("Failed to approve student")
		}
		created++
	}
	fmt.Printf("Created %d/%d students\n", created, students)

	for _, d := range model.AllDomains {
		ids := make([]int64, 0, len(sampleQuestions[d]))
		for _, req := range sampleQuestions[d] {
			q, err := questionService.Create(ctx, admin, d, req)
			if err != nil {
				log.Fatal().Err(err).Str("domain", string(d)).Msg("Failed to create question")
			}
			ids = append(ids, q.ID)
		}

		exam, err := examService.Create(ctx, admin, model.CreateExamRequest{
			Name:   d.Label() + " Fundamentals",
			Domain: string(d),
		})
		if err != nil {
			log.Fatal().Err(err).Str("domain", string(d)).Msg("Failed to create exam")
		}
		if _, err := examService.SetQuestionPaper(ctx, admin, exam.ID, ids); err != nil {
			log.Fatal().Err(err).Int64("exam_id", exam.ID).Msg("Failed to set question paper")
		}
		if _, err := examService.SetVisibility(ctx, admin, exam.ID, true); err != nil {
			log.Fatal().Err(err).Int64("exam_id", exam.ID).Msg("Failed to publish exam")
		}
		fmt.Printf("Domain %s: %d questions, exam #%d\n", d, len(ids), exam.ID)
	}

	fmt.Println("\nSeed completed!")
}

func points(p float64) *float64 { return &p }

var sampleQuestions = map[model.Domain][]model.QuestionRequest{
	model.DomainWebDev: {
		{
			Text:         "Which HTTP status code means the resource was created?",
			QuestionType: string(model.KindSingleChoice),
			Options: []model.QuestionOption{
				{Label: "A", Text: "200"}, {Label: "B", Text: "201"},
				{Label: "C", Text: "204"}, {Label: "D", Text: "301"},
			},
			AnswerKey: []string{"B"},
		},
		{
			Text:         "Which of these are HTTP methods?",
			QuestionType: string(model.KindMultiChoice),
			Options: []model.QuestionOption{
				{Label: "A", Text: "GET"}, {Label: "B", Text: "FETCH"},
				{Label: "C", Text: "PATCH"}, {Label: "D", Text: "PUSH"},
			},
			AnswerKey:     []string{"A", "C"},
			PartialCredit: true,
			Points:        points(2),
		},
		{
			Text:            "What does the acronym DOM stand for?",
			QuestionType:    string(model.KindShortText),
			AcceptedAnswers: "document object model",
		},
	},
	model.DomainML: {
		{
			Text:         "Which algorithm is used to train neural networks?",
			QuestionType: string(model.KindSingleChoice),
			Options: []model.QuestionOption{
				{Label: "A", Text: "Backpropagation"}, {Label: "B", Text: "Dijkstra"},
				{Label: "C", Text: "Quicksort"}, {Label: "D", Text: "A*"},
			},
			AnswerKey: []string{"A"},
		},
		{
			Text:         "Which of these are supervised learning tasks?",
			QuestionType: string(model.KindMultiChoice),
			Options: []model.QuestionOption{
				{Label: "A", Text: "Classification"}, {Label: "B", Text: "Clustering"},
				{Label: "C", Text: "Regression"}, {Label: "D", Text: "Dimensionality reduction"},
			},
			AnswerKey: []string{"A", "C"},
		},
		{
			Text:            "Name the error a model shows when it memorizes the training data.",
			QuestionType:    string(model.KindShortText),
			AcceptedAnswers: "overfitting, over-fitting",
		},
	},
	model.DomainDataScience: {
		{
			Text:         "Which measure is most robust to outliers?",
			QuestionType: string(model.KindSingleChoice),
			Options: []model.QuestionOption{
				{Label: "A", Text: "Mean"}, {Label: "B", Text: "Median"},
				{Label: "C", Text: "Range"}, {Label: "D", Text: "Variance"},
			},
			AnswerKey: []string{"B"},
		},
		{
			Text:            "Which Python library provides the DataFrame type?",
			QuestionType:    string(model.KindShortText),
			AcceptedAnswers: "pandas",
		},
	},
}
