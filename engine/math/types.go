package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

/**
 * @brief a 4x4 matrix used for 2D transforms and projections.
 * Elements are stored column by column, so the translation lives in
 * Data[12], Data[13] and Data[14].
 */
type Mat4 struct {
	/** @brief The matrix elements */
	Data [16]float32
}

/**
 * @brief Represents the decomposed transform of a drawable in 2D space.
 */
type Transform2D struct {
	/** @brief Position. */
	X, Y float32
	/** @brief Rotation in radians. */
	Angle float32
	/** @brief Scale factors. */
	SX, SY float32
	/** @brief Origin offset, applied before rotation and scale. */
	OX, OY float32
	/** @brief Shearing factors. */
	KX, KY float32
}
