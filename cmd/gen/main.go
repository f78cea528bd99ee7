package main

import (
	"log"

	"rag-chatbot/internal/database"

	"gorm.io/gen"
)

// Generates typed queries for the transcript model. No database connection is
// needed since the schema comes from the model struct.
func main() {
	g := gen.NewGenerator(gen.Config{
		OutPath:        "internal/database/query",
		Mode:           gen.WithDefaultQuery | gen.WithQueryInterface | gen.WithoutContext,
		FieldNullable:  true,
		FieldCoverable: true,
	})

	g.ApplyBasic(database.Exchange{})

	g.Execute()
	log.Println("generated internal/database/query")
}
