package track

// crossingLoop is the reference layout whose first crash is at 7,3 on tick 14
var crossingLoop = []string{
	`/->-\        `,
	`|   |  /----\`,
	`| /-+--+-\  |`,
	`| | |  | v  |`,
	`\-+-/  \-+--/`,
	`  \------/   `,
}

// survivorLoop is the reference layout whose last cart ends at 6,4
var survivorLoop = []string{
	`/>-<\  `,
	`|   |  `,
	`| /<+-\`,
	`| | | v`,
	`\>+</ |`,
	`  |   ^`,
	`  \<->/`,
}

// locatorFunc adapts a function to TileLocator
type locatorFunc func(x, y int) *Tile

func (f locatorFunc) TileAt(x, y int) *Tile { return f(x, y) }
