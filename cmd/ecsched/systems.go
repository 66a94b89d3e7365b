package main

import (
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/oriumgames/ecsched"
	"github.com/oriumgames/ecsched/store"
	"github.com/oriumgames/ecsched/table"
)

// Components

type Position struct {
	mgl64.Vec3
}

type Velocity struct {
	mgl64.Vec3
}

type Lifetime struct {
	Remaining time.Duration
}

type Particle struct {
	Color mgl64.Vec4
	Size  float64
}

// ShaderParams is a singleton uploaded to the renderer on the main thread.
type ShaderParams struct {
	Tint     mgl64.Vec4
	Exposure float64
	Uploads  uint64
}

type SoundEmitter struct {
	Cue       string
	Triggered bool
}

// scene bundles the world with its typed stores.
type scene struct {
	world     *store.World
	positions *store.Store[Position]
	velocity  *store.Store[Velocity]
	lifetimes *store.Store[Lifetime]
	particles *store.Store[Particle]
	emitters  *store.Store[SoundEmitter]
	shader    *store.Store[ShaderParams]
	shaderID  store.EntityID
}

func newScene() *scene {
	s := &scene{
		world:     store.NewWorld(),
		positions: store.New[Position](),
		velocity:  store.New[Velocity](),
		lifetimes: store.New[Lifetime](),
		particles: store.New[Particle](),
		emitters:  store.New[SoundEmitter](),
		shader:    store.New[ShaderParams](),
	}
	s.world.Register(s.positions, s.velocity, s.lifetimes, s.particles, s.emitters, s.shader)

	s.shaderID = s.world.CreateEntity()
	s.shader.Set(s.shaderID, &ShaderParams{Exposure: 1})
	return s
}

// spawn creates one particle. It must run outside a stage or through Defer.
func (s *scene) spawn(pos, vel mgl64.Vec3, life time.Duration, cue string) store.EntityID {
	id := s.world.CreateEntity()
	s.positions.Set(id, &Position{pos})
	s.velocity.Set(id, &Velocity{vel})
	s.lifetimes.Set(id, &Lifetime{Remaining: life})
	s.particles.Set(id, &Particle{Color: mgl64.Vec4{1, 0.6, 0.2, 1}, Size: 1})
	if cue != "" {
		s.emitters.Set(id, &SoundEmitter{Cue: cue})
	}
	return id
}

// bundle returns the built-in systems.
func (s *scene) bundle() *ecsched.Bundle {
	return ecsched.NewBundle("demo").
		System(&SpawnSystem{scene: s}).
		System(&GravitySystem{scene: s, G: mgl64.Vec3{0, -9.81, 0}}).
		System(&MovementSystem{scene: s}).
		System(&DecaySystem{scene: s}).
		System(&ShaderSystem{scene: s}).
		System(&AudioSystem{scene: s}).
		System(&CompoundSystem{scene: s})
}

// hooks binds table rows to Go systems by id.
func (s *scene) hooks() table.Hooks {
	return table.Hooks{
		"telemetry": &TelemetrySystem{scene: s},
	}
}

func seconds(dt time.Duration) float64 {
	return dt.Seconds()
}

// SpawnSystem emits a burst of particles through deferred commands.
type SpawnSystem struct {
	_ ecsched.Meta `ecsched:"id=spawn,interval=250ms,cost=0.5"`

	scene *scene
	n     int
}

func (sys *SpawnSystem) Update(_ ecsched.World, _ time.Duration) error {
	sys.n++
	n := sys.n
	sys.scene.world.Defer(func(*store.World) {
		angle := float64(n) * 0.7
		vel := mgl64.Vec3{math.Cos(angle) * 3, 8, math.Sin(angle) * 3}
		cue := ""
		if n%4 == 0 {
			cue = "pop"
		}
		sys.scene.spawn(mgl64.Vec3{}, vel, 2*time.Second, cue)
	})
	return nil
}

// GravitySystem accelerates every moving entity.
type GravitySystem struct {
	_ ecsched.Write[Velocity]
	_ ecsched.Meta `ecsched:"id=gravity,cost=1"`

	scene *scene
	G     mgl64.Vec3
}

func (sys *GravitySystem) Update(_ ecsched.World, dt time.Duration) error {
	step := sys.G.Mul(seconds(dt))
	sys.scene.velocity.Each(func(_ store.EntityID, v *Velocity) {
		v.Vec3 = v.Add(step)
	})
	return nil
}

// MovementSystem integrates positions.
type MovementSystem struct {
	_ ecsched.Read[Velocity]
	_ ecsched.Write[Position]
	_ ecsched.Meta `ecsched:"id=movement,cost=4"`

	scene *scene
}

func (sys *MovementSystem) Update(_ ecsched.World, dt time.Duration) error {
	t := seconds(dt)
	store.Each2(sys.scene.positions, sys.scene.velocity, func(_ store.EntityID, p *Position, v *Velocity) {
		p.Vec3 = p.Add(v.Mul(t))
	})
	return nil
}

// DecaySystem fades particles and queues expired ones for destruction.
type DecaySystem struct {
	_ ecsched.Write[Lifetime]
	_ ecsched.Write[Particle]
	_ ecsched.Meta `ecsched:"id=decay,cost=2"`

	scene *scene
}

func (sys *DecaySystem) Update(_ ecsched.World, dt time.Duration) error {
	store.Each2(sys.scene.lifetimes, sys.scene.particles, func(id store.EntityID, l *Lifetime, p *Particle) {
		l.Remaining -= dt
		if l.Remaining <= 0 {
			sys.scene.world.MarkForDestruction(id)
			return
		}
		p.Color[3] = math.Min(1, l.Remaining.Seconds())
		p.Size *= 0.98
	})
	return nil
}

// ShaderSystem folds particle colors into the shader tint. Uploads must
// happen on the render thread.
type ShaderSystem struct {
	_ ecsched.Read[Particle]
	_ ecsched.Write[ShaderParams]
	_ ecsched.Meta `ecsched:"id=shader,main,cost=1"`

	scene *scene
}

func (sys *ShaderSystem) Update(_ ecsched.World, _ time.Duration) error {
	params, ok := sys.scene.shader.Get(sys.scene.shaderID)
	if !ok {
		return fmt.Errorf("shader params entity %d missing", sys.scene.shaderID)
	}
	var sum mgl64.Vec4
	n := 0
	sys.scene.particles.Each(func(_ store.EntityID, p *Particle) {
		sum = sum.Add(p.Color.Mul(p.Size))
		n++
	})
	if n > 0 {
		params.Tint = sum.Mul(1 / float64(n))
	}
	params.Exposure = 1 + 0.05*float64(n)
	params.Uploads++
	return nil
}

// AudioSystem triggers cues for particles that hit the ground. The audio
// device is owned by the main thread.
type AudioSystem struct {
	_ ecsched.Read[Position]
	_ ecsched.Write[SoundEmitter]
	_ ecsched.Meta `ecsched:"id=audio,main,after=movement,cost=0.5"`

	scene  *scene
	played uint64
}

func (sys *AudioSystem) Update(_ ecsched.World, _ time.Duration) error {
	store.Each2(sys.scene.emitters, sys.scene.positions, func(_ store.EntityID, e *SoundEmitter, p *Position) {
		if !e.Triggered && p.Y() < 0 {
			e.Triggered = true
			sys.played++
		}
	})
	return nil
}

// CompoundSystem computes the centroid of the swarm. It only reads, so it
// shares a stage with other readers.
type CompoundSystem struct {
	_ ecsched.Read[Position]
	_ ecsched.Read[Lifetime]
	_ ecsched.Meta `ecsched:"id=compound,cost=3"`

	scene    *scene
	Centroid mgl64.Vec3
}

func (sys *CompoundSystem) Update(_ ecsched.World, _ time.Duration) error {
	var sum mgl64.Vec3
	n := 0
	store.Each2(sys.scene.positions, sys.scene.lifetimes, func(_ store.EntityID, p *Position, _ *Lifetime) {
		sum = sum.Add(p.Vec3)
		n++
	})
	if n > 0 {
		sys.Centroid = sum.Mul(1 / float64(n))
	}
	return nil
}

// TelemetrySystem is declared in the systems table and bound by id.
type TelemetrySystem struct {
	scene *scene
	Max   float64
}

func (sys *TelemetrySystem) Update(_ ecsched.World, _ time.Duration) error {
	sys.scene.positions.Each(func(_ store.EntityID, p *Position) {
		sys.Max = math.Max(sys.Max, p.Len())
	})
	return nil
}
