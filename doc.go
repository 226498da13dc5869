/*
Package foreman provides the runtime core of an Entity-Component-System (ECS).

Entities live in archetypes: one columnar table per distinct set of component
types. Systems declare the components they read and write plus ordering
constraints, and the world groups them into stages whose conflict-free systems
run concurrently.

Core Concepts:

  - Entity: An identifier reissued after deletion.
  - Component: A Go type registered on first use.
  - Archetype: The entities sharing one component signature.
  - Filter: A predicate over archetypes built with And, Or, Not, With, Without and Changed.
  - Global: A single world-wide value of a Go type, locked like a column for the systems declaring it.
  - Action: A marker type naming a point in the system ordering graph.
  - Stage: Systems that start once every earlier stage finished and its queued mutations were applied.

Basic Usage:

	type Position struct{ X, Y float64 }
	type Velocity struct{ X, Y float64 }

	position := foreman.FactoryNewComponent[Position]()
	velocity := foreman.FactoryNewComponent[Velocity]()

	world, _ := foreman.Factory.NewWorld(foreman.WithThreadCount(4))
	world.CreateEntity(position.New(Position{}), velocity.New(Velocity{X: 1}))

	move := foreman.Factory.NewSystem("move", func(ctx *foreman.SystemContext) error {
		for _, row := range ctx.Entities().IterMut() {
			pos := position.GetFromRow(row)
			vel := velocity.GetFromRow(row)
			pos.X += vel.X
			pos.Y += vel.Y
		}
		return nil
	}).Writes(position).Reads(velocity)
	world.RegisterSystem(move)

	world.Update()

Systems request structural changes through their SystemContext; the changes
are applied after the stage of the system, so new entities become visible to
the next stage.
*/
package foreman
