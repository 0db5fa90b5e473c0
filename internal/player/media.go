package player

// Media is the audio element the player drives. Implementations report
// element events back through the Handle* methods of the Player.
type Media interface {
	Load(ref string)
	Play()
	Pause()
	Paused() bool
	Position() float64
	SetPosition(seconds float64)
	// Duration returns the track length in seconds, 0 while unknown.
	Duration() float64
	SetVolume(level float64)
}
