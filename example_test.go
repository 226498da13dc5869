package foreman_test

import (
	"fmt"

	"github.com/TheBitDrifter/foreman"
)

// Position is a simple component for 2D coordinates
type Position struct {
	X float64
	Y float64
}

// Velocity is a simple component for 2D movement
type Velocity struct {
	X float64
	Y float64
}

// Name is a simple component for entity identification
type Name struct {
	Value string
}

// Example shows basic foreman usage with entity creation and queries
func Example_basic() {
	world, _ := foreman.Factory.NewWorld()

	// Define components
	position := foreman.FactoryNewComponent[Position]()
	velocity := foreman.FactoryNewComponent[Velocity]()
	name := foreman.FactoryNewComponent[Name]()

	// Create entities
	for range 5 {
		world.CreateEntity(position.New(Position{}))
	}
	for range 3 {
		world.CreateEntity(position.New(Position{}), velocity.New(Velocity{}))
	}
	player, _ := world.CreateEntity(
		position.New(Position{X: 10, Y: 20}),
		velocity.New(Velocity{X: 1, Y: 2}),
		name.New(Name{Value: "Player"}),
	)

	// Count entities with position and velocity
	cursor := world.Query(foreman.And(position, velocity)).Cursor()
	matchCount := 0
	for cursor.Next() {
		matchCount++
	}
	fmt.Printf("Found %d entities with position and velocity\n", matchCount)

	// Process the named entity
	cursor = world.Query(foreman.With(name)).Cursor()
	for cursor.Next() {
		pos := position.GetFromCursor(cursor)
		vel := velocity.GetFromCursor(cursor)
		nme := name.GetFromCursor(cursor)

		pos.X += vel.X
		pos.Y += vel.Y

		fmt.Printf("Updated %s to position (%.1f, %.1f)\n", nme.Value, pos.X, pos.Y)
	}

	pos, _ := position.GetFromEntity(world, player)
	fmt.Printf("Player is at (%.1f, %.1f)\n", pos.X, pos.Y)

	// Output:
	// Found 4 entities with position and velocity
	// Updated Player to position (11.0, 22.0)
	// Player is at (11.0, 22.0)
}

// Example_queries shows how to use different filter operations
func Example_queries() {
	world, _ := foreman.Factory.NewWorld()

	position := foreman.FactoryNewComponent[Position]()
	velocity := foreman.FactoryNewComponent[Velocity]()
	name := foreman.FactoryNewComponent[Name]()

	// Create different entity types
	for range 3 {
		world.CreateEntity(position.New(Position{}))
		world.CreateEntity(position.New(Position{}), velocity.New(Velocity{}))
		world.CreateEntity(position.New(Position{}), name.New(Name{}))
		world.CreateEntity(position.New(Position{}), velocity.New(Velocity{}), name.New(Name{}))
	}

	// AND query: entities with position AND velocity
	andQuery := world.Query(foreman.And(position, velocity))
	fmt.Printf("AND query matched %d entities\n", andQuery.Count())

	// OR query: entities with velocity OR name
	orQuery := world.Query(foreman.Or(velocity, name))
	fmt.Printf("OR query matched %d entities\n", orQuery.Count())

	// NOT query: entities with position but NOT velocity
	notQuery := world.Query(foreman.And(position, foreman.Not(velocity)))
	fmt.Printf("NOT query matched %d entities\n", notQuery.Count())

	// Empty OR matches nothing, empty AND everything
	fmt.Printf("Or() matched %d, And() matched %d\n",
		world.Query(foreman.Or()).Count(),
		world.Query(foreman.And()).Count())

	// Output:
	// AND query matched 6 entities
	// OR query matched 9 entities
	// NOT query matched 6 entities
	// Or() matched 0, And() matched 12
}

type physics struct{}

type rendering struct{}

func (rendering) Dependencies() []foreman.ActionID {
	return []foreman.ActionID{foreman.ActionOf[physics]()}
}

// Example_systems shows systems ordered through actions and deferred entity creation
func Example_systems() {
	world, _ := foreman.Factory.NewWorld(foreman.WithThreadCount(1))

	position := foreman.FactoryNewComponent[Position]()
	velocity := foreman.FactoryNewComponent[Velocity]()

	world.CreateEntity(position.New(Position{}), velocity.New(Velocity{X: 1, Y: 1}))

	move := foreman.Factory.NewSystem("move", func(ctx *foreman.SystemContext) error {
		for _, row := range ctx.Entities().IterMut() {
			pos := position.GetFromRow(row)
			vel := velocity.GetFromRow(row)
			pos.X += vel.X
			pos.Y += vel.Y
		}
		return nil
	}).Writes(position).Reads(velocity).RunAs(foreman.ActionOf[physics]())

	spawn := foreman.Factory.NewSystem("spawn", func(ctx *foreman.SystemContext) error {
		return ctx.CreateEntity(position.New(Position{}))
	}).CanUpdate()

	draw := foreman.Factory.NewSystem("draw", func(ctx *foreman.SystemContext) error {
		for id, row := range ctx.Entities().Iter() {
			pos := position.GetFromRow(row)
			fmt.Printf("entity %d at (%.0f, %.0f)\n", id, pos.X, pos.Y)
		}
		return nil
	}).Reads(position).RunAs(foreman.ActionOf[rendering]())

	for _, system := range []*foreman.SystemBuilder{move, spawn, draw} {
		if _, err := world.RegisterSystem(system); err != nil {
			fmt.Println(err)
		}
	}

	fmt.Printf("%d stages\n", len(world.Schedule().Stages))
	world.Update()
	world.Update()

	// Output:
	// 2 stages
	// entity 0 at (1, 1)
	// entity 1 at (0, 0)
	// entity 0 at (2, 2)
	// entity 1 at (0, 0)
	// entity 2 at (0, 0)
}
